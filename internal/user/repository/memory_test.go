package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vidtube-auth/internal/user/domain"
)

func seedUser(t *testing.T, r *MemoryRepository) *domain.User {
	t.Helper()
	u := &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com", FullName: "Alice", PasswordHash: "h"}
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedUser(t, r)

	err := r.Create(ctx, &domain.User{ID: "u2", Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	err = r.Create(ctx, &domain.User{ID: "u3", Username: "other", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	u, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	u.FullName = "mutated"
	again, _ := r.GetByID(ctx, "u1")
	assert.Equal(t, "Alice", again.FullName, "returned users must be copies")

	missing, err := r.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepository_RefreshLifecycle(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedUser(t, r)

	ok, err := r.RotateRefreshToken(ctx, "u1", "", "a")
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored yet")

	require.NoError(t, r.SetRefreshToken(ctx, "u1", "a"))
	ok, _ = r.RotateRefreshToken(ctx, "u1", "a", "b")
	assert.True(t, ok)
	ok, _ = r.RotateRefreshToken(ctx, "u1", "a", "c")
	assert.False(t, ok, "superseded value must not rotate")

	require.NoError(t, r.ClearRefreshToken(ctx, "u1"))
	require.NoError(t, r.ClearRefreshToken(ctx, "u1"))
	u, _ := r.GetByID(ctx, "u1")
	assert.Nil(t, u.RefreshToken)

	require.NoError(t, r.SetRefreshToken(ctx, "u1", "d"))
	require.NoError(t, r.UpdatePasswordHash(ctx, "u1", "h2"))
	u, _ = r.GetByID(ctx, "u1")
	assert.Equal(t, "h2", u.PasswordHash)
	assert.Nil(t, u.RefreshToken, "password change revokes the session")
}

func TestMemoryRepository_ConcurrentRotateSingleWinner(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewMemoryRepository()
	ctx := context.Background()
	seedUser(t, r)
	require.NoError(t, r.SetRefreshToken(ctx, "u1", "start"))

	const n = 50
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.RotateRefreshToken(ctx, "u1", "start", fmt.Sprintf("next-%d", i))
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
