package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube-auth/internal/user/domain"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	repo := NewPostgresRepository(db)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	return repo, mock
}

var userRowColumns = []string{"id", "username", "email", "full_name", "password_hash", "refresh_token", "avatar", "cover_image", "created_at", "updated_at"}

func TestPostgresRepository_GetByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "alice", "alice@example.com", "Alice", "$2a$hash", "tok", "", "", created, created))

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	require.NotNil(t, u.RefreshToken)
	assert.Equal(t, "tok", *u.RefreshToken)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u2", "bob", "bob@example.com", "Bob", "$2a$hash", nil, "", "", created, created))
	u, err = repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, u.RefreshToken)
}

func TestPostgresRepository_GetNotFoundAndFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)
	u, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("u1").
		WillReturnError(boom)
	_, err = repo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, boom)
}

func TestPostgresRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com", FullName: "Alice", PasswordHash: "h"}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, ErrDuplicate)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Create(context.Background(), u))
}

func TestPostgresRepository_RotateRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE users SET refresh_token = $3, updated_at = $4 WHERE id = $1 AND refresh_token = $2`)

	mock.ExpectExec(query).
		WithArgs("u1", "old", "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.RotateRefreshToken(ctx, "u1", "old", "new")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(query).
		WithArgs("u1", "old", "newer", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.RotateRefreshToken(ctx, "u1", "old", "newer")
	require.NoError(t, err)
	assert.False(t, ok, "stale current value must not rotate")
}

func TestPostgresRepository_ClearAndPassword(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("u1", "tok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetRefreshToken(ctx, "u1", "tok"))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token = NULL`)).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.ClearRefreshToken(ctx, "u1"))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET password_hash = $2, refresh_token = NULL`)).
		WithArgs("u1", "newhash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePasswordHash(ctx, "u1", "newhash"))
}
