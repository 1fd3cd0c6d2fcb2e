package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

func newTestCacheRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := NewCacheRepo(client)
	require.NoError(t, err)
	return repo, mr
}

func TestNewCacheRepo_NilClient(t *testing.T) {
	_, err := NewCacheRepo(nil)
	assert.Error(t, err)
}

func TestCacheRepo_SetNX(t *testing.T) {
	repo, mr := newTestCacheRepo(t)
	ctx := context.Background()

	ok, err := repo.SetNX(ctx, "quiz:1:user:2:question:3", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "первая установка должна пройти")

	ok, err = repo.SetNX(ctx, "quiz:1:user:2:question:3", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "повторная установка должна быть отклонена")

	mr.FastForward(2 * time.Minute)

	ok, err = repo.SetNX(ctx, "quiz:1:user:2:question:3", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "после истечения TTL ключ снова свободен")
}

func TestCacheRepo_JSONRoundTripAndDelete(t *testing.T) {
	repo, _ := newTestCacheRepo(t)
	ctx := context.Background()

	type standing struct {
		UserID uint `json:"user_id"`
		Rank   int  `json:"rank"`
	}

	require.NoError(t, repo.SetJSON(ctx, "results:1", []standing{{UserID: 7, Rank: 1}}, time.Hour))

	var got []standing
	require.NoError(t, repo.GetJSON(ctx, "results:1", &got))
	assert.Equal(t, []standing{{UserID: 7, Rank: 1}}, got)

	require.NoError(t, repo.Delete(ctx, "results:1"))
	err := repo.GetJSON(ctx, "results:1", &got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCacheRepo_StorageErrorWhenRedisDown(t *testing.T) {
	repo, mr := newTestCacheRepo(t)
	mr.Close()

	_, err := repo.SetNX(context.Background(), "k", 1, time.Minute)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}
