package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

const scanBatchSize = 200

// CacheRepository provides helpers around Redis interactions for cached score payloads.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client behaves as an always-empty cache.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return classify(fmt.Errorf("redis get %s: %w", key, err))
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// MGet fetches several keys in one round trip. Missing keys are absent from the result.
func (r *CacheRepository) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if r.client == nil || len(keys) == 0 {
		return result, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify(fmt.Errorf("redis mget %d keys: %w", len(keys), err))
	}
	for i, value := range values {
		switch v := value.(type) {
		case string:
			result[keys[i]] = []byte(v)
		case []byte:
			result[keys[i]] = v
		}
	}
	return result, nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return classify(fmt.Errorf("redis set %s: %w", key, err))
	}

	return nil
}

// Delete removes the given keys. Deleting a missing key is not an error.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return classify(fmt.Errorf("redis delete %s: %w", strings.Join(keys, ","), err))
	}
	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern and
// reports how many keys were removed.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if r.client == nil {
		return 0, nil
	}

	removed := 0
	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return classify(fmt.Errorf("redis delete pattern %s: %w", pattern, err))
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, classify(fmt.Errorf("redis scan pattern %s: %w", pattern, err))
	}
	if err := flush(); err != nil {
		return removed, err
	}

	r.logger.Debug("cache pattern deleted", zap.String("pattern", pattern), zap.Int("removed", removed))
	return removed, nil
}

// Ping checks backend reachability.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return appErrors.ErrCacheUnavailable
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return classify(fmt.Errorf("redis ping: %w", err))
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// classify maps Redis "OOM" replies to ErrQuotaExceeded and every other
// backend failure to ErrCacheUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "OOM") {
		return appErrors.Wrap(err, appErrors.ErrQuotaExceeded.Code, appErrors.ErrQuotaExceeded.Status, appErrors.ErrQuotaExceeded.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrCacheUnavailable.Code, appErrors.ErrCacheUnavailable.Status, appErrors.ErrCacheUnavailable.Message)
}
