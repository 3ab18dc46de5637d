package security

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, carries a bad signature,
	// uses an unexpected algorithm, or was issued by someone else.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a well-signed token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrSecretReuse is returned when the access and refresh secrets are identical.
	ErrSecretReuse = errors.New("access and refresh secrets must differ")
)

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims holds the JWT claims shared by access and refresh tokens: sub, iat, exp, iss and a random jti.
type Claims struct {
	jwt.RegisteredClaims
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is the access/refresh pair returned by login and refresh.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// VerifiedToken is the result of a successful validation.
type VerifiedToken struct {
	UserID    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and validates HS256 access and refresh JWTs. Each kind
// has its own secret and TTL so a leaked access secret cannot mint refresh tokens.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewTokenProvider returns a TokenProvider. Both secrets must be non-empty and different.
func NewTokenProvider(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenProvider, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrInvalidSecret
	}
	if subtle.ConstantTimeCompare(accessSecret, refreshSecret) == 1 {
		return nil, ErrSecretReuse
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	p := &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IssueAccess issues a short-lived access JWT for userID.
func (p *TokenProvider) IssueAccess(userID string) (IssuedToken, error) {
	return p.issue(userID, p.accessSecret, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh JWT for userID.
func (p *TokenProvider) IssueRefresh(userID string) (IssuedToken, error) {
	return p.issue(userID, p.refreshSecret, p.refreshTTL)
}

// IssuePair issues an access and a refresh token for userID.
func (p *TokenProvider) IssuePair(userID string) (TokenPair, error) {
	access, err := p.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := p.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (p *TokenProvider) issue(userID string, secret []byte, ttl time.Duration) (IssuedToken, error) {
	if userID == "" {
		return IssuedToken{}, errors.New("token subject is required")
	}
	now := p.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: signed, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// ValidateAccess verifies signature, algorithm, issuer and expiry of an access token.
func (p *TokenProvider) ValidateAccess(token string) (*VerifiedToken, error) {
	return p.Verify(token, TokenKindAccess)
}

// ValidateRefresh verifies signature, algorithm, issuer and expiry of a refresh token.
func (p *TokenProvider) ValidateRefresh(token string) (*VerifiedToken, error) {
	return p.Verify(token, TokenKindRefresh)
}

// Verify validates token against the secret for kind. It returns ErrTokenExpired
// for an expired but otherwise valid token and ErrTokenInvalid for everything else.
func (p *TokenProvider) Verify(token string, kind TokenKind) (*VerifiedToken, error) {
	var secret []byte
	switch kind {
	case TokenKindAccess:
		secret = p.accessSecret
	case TokenKindRefresh:
		secret = p.refreshSecret
	default:
		return nil, ErrTokenInvalid
	}
	if token == "" {
		return nil, ErrTokenInvalid
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	v := &VerifiedToken{
		UserID: claims.Subject,
		ID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		v.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Time
	}
	return v, nil
}
