package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	auditdomain "vidtube-auth/internal/audit/domain"
	"vidtube-auth/internal/observability"
	"vidtube-auth/internal/platform/apperr"
	"vidtube-auth/internal/ratelimit"
	"vidtube-auth/internal/security"
	userdomain "vidtube-auth/internal/user/domain"
	userrepo "vidtube-auth/internal/user/repository"
)

// Causes attached to Unauthorized errors. Clients only ever see the generic
// message; these are for logs and errors.Is checks.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrRefreshTokenReused = errors.New("refresh token is expired or used")
)

// Client-facing messages.
const (
	msgInvalidCredentials  = "invalid user credentials"
	msgUnauthorized        = "unauthorized request"
	msgInvalidRefreshToken = "invalid refresh token"
	msgRefreshTokenUsed    = "refresh token is expired or used"
	msgTooManyAttempts     = "too many failed login attempts, try again later"
)

// minPasswordLength is the shortest password accepted at registration and password change.
const minPasswordLength = 6

// dummyPassword is hashed once and verified against when a login names an
// unknown user, so both failure paths pay for one bcrypt comparison.
const dummyPassword = "vidtube-auth-timing-equalizer"

// Credentials is a login attempt. Username wins over Email when both are set.
type Credentials struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     string
	CoverImage string
}

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	Tokens security.TokenPair
	// User is sanitized: no password hash, no refresh token.
	User *userdomain.User
}

// UserRepo is the user repository needed by the auth service.
type UserRepo interface {
	Create(ctx context.Context, u *userdomain.User) error
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// PasswordHasher hashes and verifies passwords; *security.Hasher implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer issues and validates token pairs; *security.TokenProvider implements it.
type TokenIssuer interface {
	IssuePair(userID string) (security.TokenPair, error)
	ValidateAccess(token string) (*security.VerifiedToken, error)
	ValidateRefresh(token string) (*security.VerifiedToken, error)
}

// LoginLimiter throttles failed logins; *ratelimit.LoginLimiter implements it.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
}

// AuditLogger records auth events; *audit.Logger implements it.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action string, metadata map[string]string)
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

// WithLimiter enables login throttling.
func WithLimiter(l LoginLimiter) Option { return func(s *AuthService) { s.limiter = l } }

// WithAuditLogger records auth events.
func WithAuditLogger(a AuditLogger) Option { return func(s *AuthService) { s.audit = a } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records Prometheus counters.
func WithMetrics(m *observability.Metrics) Option { return func(s *AuthService) { s.metrics = m } }

// WithTracer overrides the tracer (defaults to the global provider).
func WithTracer(t trace.Tracer) Option { return func(s *AuthService) { s.tracer = t } }

// AuthService implements register, login, refresh rotation, logout and password change.
type AuthService struct {
	users   UserRepo
	hasher  PasswordHasher
	tokens  TokenIssuer
	limiter LoginLimiter
	audit   AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(users UserRepo, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *AuthService {
	s := &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
		tracer: otel.Tracer("vidtube-auth/identity"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth")
	return s
}

// Register creates a user. Username and email are stored lower-cased; either
// one already being taken is a Conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *userdomain.User, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.Register(resultOf(err)) }()

	fullName := strings.TrimSpace(in.FullName)
	username := userdomain.NormalizeUsername(in.Username)
	email := userdomain.NormalizeEmail(in.Email)
	if fullName == "" || username == "" || email == "" || in.Password == "" {
		return nil, apperr.BadRequest("all fields are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.BadRequest("invalid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	for _, lookup := range []func() (*userdomain.User, error){
		func() (*userdomain.User, error) { return s.users.GetByUsername(ctx, username) },
		func() (*userdomain.User, error) { return s.users.GetByEmail(ctx, email) },
	} {
		existing, err := lookup()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if existing != nil {
			return nil, apperr.Conflict("user with email or username already exists", userrepo.ErrDuplicate)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.now().UTC()
	u := &userdomain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Avatar:       strings.TrimSpace(in.Avatar),
		CoverImage:   strings.TrimSpace(in.CoverImage),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, apperr.Conflict("user with email or username already exists", err)
		}
		s.logger.ErrorContext(ctx, "register: create user failed", "username", username, "error", err)
		return nil, apperr.Internal(err)
	}
	s.logEvent(ctx, u.ID, auditdomain.ActionRegister, nil)
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u.Sanitized(), nil
}

// Login verifies credentials, issues a token pair and stores the refresh
// token as the user's single active session, replacing any previous one.
func (s *AuthService) Login(ctx context.Context, c Credentials) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	username := userdomain.NormalizeUsername(c.Username)
	email := userdomain.NormalizeEmail(c.Email)
	if username == "" && email == "" {
		return nil, apperr.BadRequest("username or email is required")
	}
	if c.Password == "" {
		return nil, apperr.BadRequest("password is required")
	}
	identifier := username
	if identifier == "" {
		identifier = email
	}

	if s.limiter != nil {
		if lerr := s.limiter.CheckLogin(ctx, identifier, c.ClientIP); lerr != nil {
			if errors.Is(lerr, ratelimit.ErrRateLimited) {
				s.metrics.Login(observability.ResultLimited)
				s.logEvent(ctx, "", auditdomain.ActionLoginFailure, map[string]string{"reason": "rate_limited", "identifier": identifier})
				return nil, apperr.TooManyRequests(msgTooManyAttempts, lerr)
			}
			s.logger.WarnContext(ctx, "login limiter unavailable, continuing", "error", lerr)
		}
	}

	u, err := s.lookupLogin(ctx, username, email)
	if err != nil {
		s.metrics.Login(observability.ResultFailure)
		return nil, apperr.Internal(err)
	}
	if u == nil {
		s.hasher.Verify(c.Password, s.timingHash())
		s.loginFailed(ctx, "", identifier, c.ClientIP, "user_not_found")
		return nil, apperr.Unauthorized(msgInvalidCredentials, ErrUserNotFound)
	}
	if !s.hasher.Verify(c.Password, u.PasswordHash) {
		s.loginFailed(ctx, u.ID, identifier, c.ClientIP, "invalid_password")
		return nil, apperr.Unauthorized(msgInvalidCredentials, ErrInvalidPassword)
	}

	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		s.metrics.Login(observability.ResultFailure)
		return nil, apperr.Internal(err)
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, pair.Refresh.Value); err != nil {
		s.metrics.Login(observability.ResultFailure)
		s.logger.ErrorContext(ctx, "login: persist refresh token failed", "user_id", u.ID, "error", err)
		return nil, apperr.Internal(err)
	}
	if s.limiter != nil {
		if lerr := s.limiter.ResetLogin(ctx, identifier); lerr != nil {
			s.logger.WarnContext(ctx, "login limiter reset failed", "error", lerr)
		}
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	s.metrics.Login(observability.ResultSuccess)
	s.logEvent(ctx, u.ID, auditdomain.ActionLoginSuccess, map[string]string{"token_fp": security.TokenFingerprint(pair.Refresh.Value)})
	s.logger.InfoContext(ctx, "login succeeded", "user_id", u.ID)
	return &AuthResult{Tokens: pair, User: u.Sanitized()}, nil
}

func (s *AuthService) lookupLogin(ctx context.Context, username, email string) (*userdomain.User, error) {
	if username != "" {
		u, err := s.users.GetByUsername(ctx, username)
		if err != nil || u != nil || email == "" {
			return u, err
		}
	}
	return s.users.GetByEmail(ctx, email)
}

func (s *AuthService) loginFailed(ctx context.Context, userID, identifier, ip, reason string) {
	s.metrics.Login(observability.ResultFailure)
	if s.limiter != nil {
		if err := s.limiter.IncrementLogin(ctx, identifier, ip); err != nil {
			s.logger.WarnContext(ctx, "login limiter increment failed", "error", err)
		}
	}
	s.logEvent(ctx, userID, auditdomain.ActionLoginFailure, map[string]string{"reason": reason, "identifier": identifier})
	s.logger.InfoContext(ctx, "login failed", "reason", reason, "user_id", userID)
}

// timingHash returns a real bcrypt hash for the unknown-user path.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("timing hash unavailable", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Refresh exchanges the current refresh token for a new pair. The swap is a
// single conditional write, so a given token succeeds at most once even under
// concurrent presentation; every other attempt is Unauthorized.
func (s *AuthService) Refresh(ctx context.Context, token string) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	if token == "" {
		s.metrics.Refresh(observability.ResultFailure)
		return nil, apperr.Unauthorized(msgUnauthorized, nil)
	}
	fp := security.TokenFingerprint(token)

	v, verr := s.tokens.ValidateRefresh(token)
	if verr != nil {
		reason := "invalid"
		if errors.Is(verr, security.ErrTokenExpired) {
			reason = "expired"
			s.logger.InfoContext(ctx, "refresh rejected: token expired", "token_fp", fp)
		} else {
			s.logger.WarnContext(ctx, "refresh rejected: invalid token, possible tampering", "token_fp", fp)
		}
		s.metrics.Refresh(observability.ResultFailure)
		s.logEvent(ctx, "", auditdomain.ActionRefreshFailure, map[string]string{"reason": reason, "token_fp": fp})
		return nil, apperr.Unauthorized(msgInvalidRefreshToken, verr)
	}

	u, err := s.users.GetByID(ctx, v.UserID)
	if err != nil {
		s.metrics.Refresh(observability.ResultFailure)
		return nil, apperr.Internal(err)
	}
	if u == nil {
		s.metrics.Refresh(observability.ResultFailure)
		s.logEvent(ctx, v.UserID, auditdomain.ActionRefreshFailure, map[string]string{"reason": "user_not_found", "token_fp": fp})
		return nil, apperr.Unauthorized(msgInvalidRefreshToken, ErrUserNotFound)
	}

	if !u.HasSession() {
		return nil, s.refreshReused(ctx, u.ID, fp, "no_session")
	}
	if !security.RefreshTokenEqual(token, *u.RefreshToken) {
		return nil, s.refreshReused(ctx, u.ID, fp, "mismatch")
	}

	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		s.metrics.Refresh(observability.ResultFailure)
		return nil, apperr.Internal(err)
	}
	ok, err := s.users.RotateRefreshToken(ctx, u.ID, token, pair.Refresh.Value)
	if err != nil {
		s.metrics.Refresh(observability.ResultFailure)
		s.logger.ErrorContext(ctx, "refresh: rotate failed", "user_id", u.ID, "error", err)
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, s.refreshReused(ctx, u.ID, fp, "lost_race")
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.metrics.Refresh(observability.ResultSuccess)
	s.logEvent(ctx, u.ID, auditdomain.ActionRefresh, map[string]string{
		"old_token_fp": fp,
		"token_fp":     security.TokenFingerprint(pair.Refresh.Value),
	})
	return &AuthResult{Tokens: pair, User: u.Sanitized()}, nil
}

func (s *AuthService) refreshReused(ctx context.Context, userID, fp, reason string) error {
	s.metrics.Refresh(observability.ResultReused)
	s.logEvent(ctx, userID, auditdomain.ActionRefreshReuse, map[string]string{"reason": reason, "token_fp": fp})
	s.logger.WarnContext(ctx, "refresh rejected: token superseded or revoked", "user_id", userID, "token_fp", fp, "reason", reason)
	return apperr.Unauthorized(msgRefreshTokenUsed, ErrRefreshTokenReused)
}

// Logout clears the stored refresh token. Calling it again, or for a user with
// no session, succeeds.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return apperr.Unauthorized(msgUnauthorized, nil)
	}
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "logout: clear refresh token failed", "user_id", userID, "error", err)
		return apperr.Internal(err)
	}
	s.metrics.Logout()
	s.logEvent(ctx, userID, auditdomain.ActionLogout, nil)
	s.logger.InfoContext(ctx, "logout", "user_id", userID)
	return nil
}

// ChangePassword replaces the password after verifying the current one. The
// stored refresh token is cleared in the same write, ending every session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ChangePassword")
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.PasswordChange(resultOf(err)) }()

	if currentPassword == "" || newPassword == "" {
		return apperr.BadRequest("current and new password are required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if u == nil {
		return apperr.NotFound("user not found")
	}
	if !s.hasher.Verify(currentPassword, u.PasswordHash) {
		s.logger.InfoContext(ctx, "password change rejected: wrong current password", "user_id", userID)
		return apperr.Unauthorized("invalid old password", ErrInvalidPassword)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		s.logger.ErrorContext(ctx, "password change: update failed", "user_id", userID, "error", err)
		return apperr.Internal(err)
	}
	s.logEvent(ctx, userID, auditdomain.ActionPasswordChange, nil)
	s.logger.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *AuthService) logEvent(ctx context.Context, userID, action string, metadata map[string]string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, metadata)
	}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.BadRequest("password must be at least 6 characters")
	}
	if len(password) > security.MaxPasswordBytes {
		return apperr.BadRequest("password must be at most 72 bytes")
	}
	return nil
}

func resultOf(err error) string {
	if err != nil {
		return observability.ResultFailure
	}
	return observability.ResultSuccess
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}
