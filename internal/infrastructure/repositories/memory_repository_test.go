package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/infrastructure/repositories"
)

func stagedRecord(identity, token string, created time.Time) *verification.StagedRecord {
	return &verification.StagedRecord{
		ID:          uuid.New(),
		IdentityKey: identity,
		Token:       token,
		Attributes:  verification.Attributes{"email": identity, "password": "hash"},
		CreatedAt:   created,
		ExpiresAt:   created.Add(time.Hour),
	}
}

func TestStagedMemoryRepository_UniqueIdentityAndToken(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStagedMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, stagedRecord("a@b.com", "t1", now)))
	assert.ErrorIs(t, repo.Create(ctx, stagedRecord("a@b.com", "t2", now)), verification.ErrConflict)
	assert.ErrorIs(t, repo.Create(ctx, stagedRecord("c@d.com", "t1", now)), verification.ErrTokenCollision)

	got, err := repo.GetByIdentity(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)

	got.Attributes["email"] = "mutated"
	again, err := repo.GetByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", again.Attributes["email"])
}

func TestStagedMemoryRepository_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStagedMemoryRepository()
	require.NoError(t, repo.Create(ctx, stagedRecord("a@b.com", "t1", time.Now())))

	require.NoError(t, repo.DeleteByToken(ctx, "t1"))
	require.NoError(t, repo.DeleteByToken(ctx, "t1"))

	_, err := repo.GetByToken(ctx, "t1")
	assert.ErrorIs(t, err, verification.ErrNotFound)
	_, err = repo.GetByIdentity(ctx, "a@b.com")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestStagedMemoryRepository_UpdateToken(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStagedMemoryRepository()
	created := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, stagedRecord("a@b.com", "old", created)))
	require.NoError(t, repo.Create(ctx, stagedRecord("x@y.com", "taken", created)))

	_, err := repo.UpdateToken(ctx, "a@b.com", "old", "taken")
	assert.ErrorIs(t, err, verification.ErrTokenCollision)

	updated, err := repo.UpdateToken(ctx, "a@b.com", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Token)
	assert.True(t, created.Equal(updated.CreatedAt))

	_, err = repo.GetByToken(ctx, "old")
	assert.ErrorIs(t, err, verification.ErrNotFound)

	_, err = repo.UpdateToken(ctx, "a@b.com", "old", "newer")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestStagedMemoryRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStagedMemoryRepository()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, stagedRecord("old@b.com", "t1", now.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, stagedRecord("new@b.com", "t2", now)))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByIdentity(ctx, "old@b.com")
	assert.ErrorIs(t, err, verification.ErrNotFound)
	_, err = repo.GetByIdentity(ctx, "new@b.com")
	assert.NoError(t, err)
}

func TestStagedMemoryRepository_ConcurrentCreateSameIdentity(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStagedMemoryRepository()
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if repo.Create(ctx, stagedRecord("a@b.com", fmt.Sprintf("t%d", i), now)) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestPermanentMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewPermanentMemoryRepository()
	u := &verification.PermanentUser{ID: uuid.New(), IdentityKey: "a@b.com", Attributes: verification.Attributes{"email": "a@b.com"}}

	exists, err := repo.ExistsByIdentity(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, u), verification.ErrConflict)

	got, err := repo.GetByIdentity(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	exists, err = repo.ExistsByIdentity(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByIdentity(ctx, "nobody")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestRateLimitMemoryRepository_CountsPerWindow(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewRateLimitMemoryRepository()

	for i := 1; i <= 3; i++ {
		n, _, err := repo.IncrementWindow(ctx, "10.0.0.1", time.Hour, "rl", 2*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, _, err := repo.IncrementWindow(ctx, "10.0.0.2", time.Hour, "rl", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
