package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessCodeStoreClearIsIdempotent(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	store := NewAccessCodeStore(cache, 5, nil)
	ctx := context.Background()

	require.NoError(t, store.StoreCode(ctx, "S1", "XK42"))
	code, ok := store.GetCode(ctx, "S1")
	require.True(t, ok)
	assert.Equal(t, "XK42", code)

	require.NoError(t, store.ClearCode(ctx, "S1"))
	_, ok = store.GetCode(ctx, "S1")
	assert.False(t, ok)

	require.NoError(t, store.ClearCode(ctx, "S1"))
	_, ok = store.GetCode(ctx, "S1")
	assert.False(t, ok)
}

func TestAccessCodeStoreClearsAfterConsecutiveFailures(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	store := NewAccessCodeStore(cache, 5, nil)
	ctx := context.Background()
	require.NoError(t, store.StoreCode(ctx, "S1", "XK42"))

	for i := 0; i < 4; i++ {
		cleared, err := store.RecordValidation(ctx, "S1", false)
		require.NoError(t, err)
		assert.False(t, cleared)
	}
	cleared, err := store.RecordValidation(ctx, "S1", false)
	require.NoError(t, err)
	assert.True(t, cleared)
	_, ok := store.GetCode(ctx, "S1")
	assert.False(t, ok)
	assert.Zero(t, store.Failures("S1"))
}

func TestAccessCodeStoreSuccessResetsCounter(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	store := NewAccessCodeStore(cache, 5, nil)
	ctx := context.Background()
	require.NoError(t, store.StoreCode(ctx, "S1", "XK42"))

	for i := 0; i < 4; i++ {
		_, _ = store.RecordValidation(ctx, "S1", false)
	}
	cleared, err := store.RecordValidation(ctx, "S1", true)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Zero(t, store.Failures("S1"))

	cleared, _ = store.RecordValidation(ctx, "S1", false)
	assert.False(t, cleared)
	_, ok := store.GetCode(ctx, "S1")
	assert.True(t, ok)
}
