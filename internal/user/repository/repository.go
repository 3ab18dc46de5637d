package repository

import (
	"context"
	"errors"

	"vidtube-auth/internal/user/domain"
)

// ErrDuplicate is returned by Create when the username or email is already taken.
var ErrDuplicate = errors.New("user already exists")

// Repository defines persistence for users. Getters return (nil, nil) when no
// row matches; errors are reserved for storage failures.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// SetRefreshToken overwrites the stored refresh token unconditionally.
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces current with next only if current is still the
	// stored value. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	// ClearRefreshToken sets the stored refresh token to nil. Idempotent.
	ClearRefreshToken(ctx context.Context, id string) error
	// UpdatePasswordHash stores a new hash and clears the refresh token in the same write.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
