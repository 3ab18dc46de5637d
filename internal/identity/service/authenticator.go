package service

import (
	"context"

	"vidtube-auth/internal/platform/apperr"
	userdomain "vidtube-auth/internal/user/domain"
)

const msgInvalidAccessToken = "invalid access token"

// Authenticator resolves an access token to the user it was issued for.
// Transport gates depend on this rather than on AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*userdomain.User, error)
}

var _ Authenticator = (*AuthService)(nil)

// Authenticate resolves an access token to its sanitized user. It is the gate
// in front of every protected route; a missing token, a bad or expired token
// and a deleted user all yield Unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (_ *userdomain.User, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Authenticate")
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.Authenticate(resultOf(err)) }()

	if token == "" {
		return nil, apperr.Unauthorized(msgUnauthorized, nil)
	}
	v, err := s.tokens.ValidateAccess(token)
	if err != nil {
		s.logger.DebugContext(ctx, "access token rejected", "error", err)
		return nil, apperr.Unauthorized(msgInvalidAccessToken, err)
	}
	u, err := s.users.GetByID(ctx, v.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.Unauthorized(msgInvalidAccessToken, ErrUserNotFound)
	}
	return u.Sanitized(), nil
}

// CurrentUser returns the sanitized user for an already authenticated ID.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u.Sanitized(), nil
}
