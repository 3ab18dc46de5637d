package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"vidtube-auth/internal/user/domain"
)

const userColumns = `id, username, email, full_name, password_hash, refresh_token, avatar, cover_image, created_at, updated_at`

// PostgresRepository implements Repository on a database/sql handle opened with the pgx driver.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Create inserts u. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, password_hash, refresh_token, avatar, cover_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash,
		nullString(u.RefreshToken), u.Avatar, u.CoverImage, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicate
		}
		return oops.Code("USER_CREATE_FAILED").
			With("username", u.Username).
			Wrap(err)
	}
	return nil
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "USER_GET_BY_ID_FAILED", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername returns the user with the given (normalized) username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "USER_GET_BY_USERNAME_FAILED", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByEmail returns the user with the given (normalized) email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "USER_GET_BY_EMAIL_FAILED", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, code, query string, arg string) (*domain.User, error) {
	var (
		u       domain.User
		refresh sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash,
		&refresh, &u.Avatar, &u.CoverImage, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code(code).With("key", arg).Wrap(err)
	}
	if refresh.Valid {
		s := refresh.String
		u.RefreshToken = &s
	}
	return &u, nil
}

// SetRefreshToken overwrites the stored refresh token for id.
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		id, token, r.now().UTC())
	if err != nil {
		return oops.Code("USER_SET_REFRESH_FAILED").With("user_id", id).Wrap(err)
	}
	return nil
}

// RotateRefreshToken swaps current for next in a single conditional update.
// Concurrent callers presenting the same current value race on the row lock;
// only the first sees a matching row.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = $4 WHERE id = $1 AND refresh_token = $2`,
		id, current, next, r.now().UTC())
	if err != nil {
		return false, oops.Code("USER_ROTATE_REFRESH_FAILED").With("user_id", id).Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, oops.Code("USER_ROTATE_REFRESH_FAILED").With("user_id", id).Wrap(err)
	}
	return n == 1, nil
}

// ClearRefreshToken sets refresh_token to NULL for id.
func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = $2 WHERE id = $1`,
		id, r.now().UTC())
	if err != nil {
		return oops.Code("USER_CLEAR_REFRESH_FAILED").With("user_id", id).Wrap(err)
	}
	return nil
}

// UpdatePasswordHash stores passwordHash and revokes the current refresh token.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, refresh_token = NULL, updated_at = $3 WHERE id = $1`,
		id, passwordHash, r.now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").With("user_id", id).Wrap(err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
