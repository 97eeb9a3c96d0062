package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

func newCacheRepoMock(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, mr := newCacheRepoMock(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "sma:SCORES:scores:calc:S1:abc", map[string]float64{"final": 80}, time.Minute))

	var got map[string]float64
	require.NoError(t, repo.Get(ctx, "sma:SCORES:scores:calc:S1:abc", &got))
	assert.Equal(t, 80.0, got["final"])

	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "sma:SCORES:scores:calc:S1:abc", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryMGet(t *testing.T) {
	repo, _ := newCacheRepoMock(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "c", 3, time.Minute))

	values, err := repo.MGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Equal(t, "1", string(values["a"]))
	_, ok := values["b"]
	assert.False(t, ok)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepoMock(t)
	ctx := context.Background()
	for _, key := range []string{"sma:SCORES:scores:calc:S1:h", "sma:SCORES:scores:calc:S2:h", "sma:CONFIG:config:settings"} {
		require.NoError(t, repo.Set(ctx, key, "v", time.Minute))
	}

	removed, err := repo.DeleteByPattern(ctx, "sma:*:scores:calc:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, mr.Exists("sma:CONFIG:config:settings"))

	removed, err = repo.DeleteByPattern(ctx, "sma:*:scores:calc:*")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCacheRepositoryDeleteIsIdempotent(t *testing.T) {
	repo, _ := newCacheRepoMock(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.Delete(ctx, "k"))

	var v string
	assert.ErrorIs(t, repo.Get(ctx, "k", &v), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryClassifiesQuotaErrors(t *testing.T) {
	repo, mr := newCacheRepoMock(t)
	mr.SetError("OOM command not allowed when used memory > 'maxmemory'")

	err := repo.Set(context.Background(), "k", "v", time.Minute)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrQuotaExceeded))

	mr.SetError("")
	mr.Close()
	err = repo.Set(context.Background(), "k", "v", time.Minute)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheUnavailable))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var v string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
	n, err := repo.DeleteByPattern(context.Background(), "*")
	assert.NoError(t, err)
	assert.Zero(t, n)
}
