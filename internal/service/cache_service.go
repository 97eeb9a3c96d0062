package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

// CacheTier groups keys by data volatility.
type CacheTier string

const (
	TierStatic CacheTier = "STATIC"
	TierConfig CacheTier = "CONFIG"
	TierScores CacheTier = "SCORES"
	TierUser   CacheTier = "USER"
	TierLive   CacheTier = "LIVE"
)

// quotaEvictionOrder lists the tiers sacrificed when the backend is out of memory.
var quotaEvictionOrder = []CacheTier{TierLive, TierUser, TierScores}

// TierPolicy controls staleness and eviction for one tier.
type TierPolicy struct {
	StaleAfter        time.Duration
	EvictAfter        time.Duration
	RevalidateOnFocus bool
}

// DefaultTierPolicies returns the built-in tier table.
func DefaultTierPolicies() map[CacheTier]TierPolicy {
	return map[CacheTier]TierPolicy{
		TierStatic: {StaleAfter: 30 * time.Minute, EvictAfter: 60 * time.Minute},
		TierConfig: {StaleAfter: 15 * time.Minute, EvictAfter: 30 * time.Minute},
		TierScores: {StaleAfter: 5 * time.Minute, EvictAfter: 15 * time.Minute},
		TierUser:   {StaleAfter: 2 * time.Minute, EvictAfter: 10 * time.Minute},
		TierLive:   {StaleAfter: 30 * time.Second, EvictAfter: 2 * time.Minute, RevalidateOnFocus: true},
	}
}

// TierPoliciesFromConfig overlays configured windows on the defaults.
func TierPoliciesFromConfig(cfg config.CacheConfig) map[CacheTier]TierPolicy {
	policies := DefaultTierPolicies()
	overlay := func(tier CacheTier, tc config.CacheTierConfig) {
		p := policies[tier]
		if tc.StaleAfter > 0 {
			p.StaleAfter = tc.StaleAfter
		}
		if tc.EvictAfter > 0 {
			p.EvictAfter = tc.EvictAfter
		}
		if p.EvictAfter < p.StaleAfter {
			p.EvictAfter = p.StaleAfter
		}
		policies[tier] = p
	}
	overlay(TierStatic, cfg.Static)
	overlay(TierConfig, cfg.Config)
	overlay(TierScores, cfg.Scores)
	overlay(TierUser, cfg.User)
	overlay(TierLive, cfg.Live)
	return policies
}

// CacheStatus reports how a lookup was served.
type CacheStatus int

const (
	CacheMiss CacheStatus = iota
	CacheFresh
	CacheStale
	CacheLoaded
)

// Hit reports whether the value came from cache.
func (s CacheStatus) Hit() bool { return s == CacheFresh || s == CacheStale }

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

type cacheEnvelope struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
	Tier     CacheTier       `json:"tier"`
}

// CachedValue is a raw cached payload returned by GetMany.
type CachedValue struct {
	Value json.RawMessage
	Stale bool
}

// CacheSnapshot captures a key's prior state for Restore.
type CacheSnapshot struct {
	Tier     CacheTier
	Key      string
	envelope *cacheEnvelope
}

// Existed reports whether the key held a value when captured.
func (s CacheSnapshot) Existed() bool { return s.envelope != nil }

// CacheOptions configures the cache service.
type CacheOptions struct {
	Enabled  bool
	Prefix   string
	Cooldown time.Duration
	Policies map[CacheTier]TierPolicy
}

// CacheService is the tiered read-through cache. Backend failures never
// reach readers: the cache disables itself for a cooldown and reads fall
// through to their loaders. Deletes and invalidations are never skipped by
// the cooldown; when one fails, the cache stays off until a full flush of its
// prefix succeeds.
type CacheService struct {
	repo          CacheRepository
	metrics       *MetricsService
	logger        *zap.Logger
	enabled       bool
	prefix        string
	cooldown      time.Duration
	policies      map[CacheTier]TierPolicy
	group         singleflight.Group
	disabledUntil atomic.Int64
	pendingFlush  atomic.Bool
	now           func() time.Time
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, logger *zap.Logger, opts CacheOptions) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Prefix == "" {
		opts.Prefix = "sma"
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.Policies == nil {
		opts.Policies = DefaultTierPolicies()
	}
	return &CacheService{
		repo:     repo,
		metrics:  metrics,
		logger:   logger,
		enabled:  opts.Enabled,
		prefix:   opts.Prefix,
		cooldown: opts.Cooldown,
		policies: opts.Policies,
		now:      time.Now,
	}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s.available() && !s.pendingFlush.Load()
}

// writable reports whether a backend is configured, ignoring the cooldown.
func (s *CacheService) writable() bool {
	return s != nil && s.enabled && s.repo != nil
}

// ready is Enabled for callers holding a context: once the cooldown has
// passed it retries an outstanding flush before serving from the cache.
func (s *CacheService) ready(ctx context.Context) bool {
	if !s.available() {
		return false
	}
	if !s.pendingFlush.Load() {
		return true
	}
	return s.flushPending(ctx)
}

func (s *CacheService) flushPending(ctx context.Context) bool {
	pattern := s.prefix + ":*"
	removed, err := s.repo.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.fail(ctx, "flush", pattern, err)
		return false
	}
	s.pendingFlush.Store(false)
	s.metrics.RecordCacheEviction("*", removed)
	s.logger.Info("cache flushed after failed invalidation", zap.Int("removed", removed))
	return true
}

func (s *CacheService) available() bool {
	if !s.writable() {
		return false
	}
	until := s.disabledUntil.Load()
	if until == 0 {
		return true
	}
	if s.now().UnixNano() < until {
		return false
	}
	if s.disabledUntil.CompareAndSwap(until, 0) {
		s.metrics.SetCacheDisabled(false)
		s.logger.Info("cache re-enabled after cooldown")
	}
	return true
}

// Policy returns the policy for a tier.
func (s *CacheService) Policy(tier CacheTier) TierPolicy {
	if p, ok := s.policies[tier]; ok {
		return p
	}
	return s.policies[TierScores]
}

// Key builds the physical key for a logical key.
func (s *CacheService) Key(tier CacheTier, key string) string {
	return s.prefix + ":" + string(tier) + ":" + key
}

// Get decodes a cached value into dest.
func (s *CacheService) Get(ctx context.Context, tier CacheTier, key string, dest interface{}) CacheStatus {
	if !s.ready(ctx) {
		return CacheMiss
	}
	physical := s.Key(tier, key)
	start := time.Now()
	var env cacheEnvelope
	err := s.repo.Get(ctx, physical, &env)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(tier, false, duration)
		switch {
		case appErrors.Is(err, appErrors.ErrCacheMiss):
		case backendFailure(err):
			s.fail(ctx, "get", physical, err)
		default:
			s.logger.Warn("cache entry undecodable, dropping", zap.String("key", physical), zap.Error(err))
			_ = s.repo.Delete(ctx, physical)
		}
		return CacheMiss
	}
	if err := json.Unmarshal(env.Value, dest); err != nil {
		s.metrics.RecordCacheOperation(tier, false, duration)
		s.logger.Warn("cache entry undecodable, dropping", zap.String("key", physical), zap.Error(err))
		_ = s.repo.Delete(ctx, physical)
		return CacheMiss
	}
	s.metrics.RecordCacheOperation(tier, true, duration)
	if s.isStale(tier, env) {
		return CacheStale
	}
	return CacheFresh
}

// GetMany fetches several logical keys of one tier in a single round trip.
func (s *CacheService) GetMany(ctx context.Context, tier CacheTier, keys []string) map[string]CachedValue {
	result := make(map[string]CachedValue, len(keys))
	if len(keys) == 0 || !s.ready(ctx) {
		return result
	}
	physical := make([]string, len(keys))
	for i, key := range keys {
		physical[i] = s.Key(tier, key)
	}
	start := time.Now()
	raw, err := s.repo.MGet(ctx, physical)
	if err != nil {
		s.fail(ctx, "mget", s.Key(tier, "*"), err)
		return result
	}
	perKey := time.Since(start) / time.Duration(len(keys))
	for i, key := range keys {
		payload, ok := raw[physical[i]]
		var env cacheEnvelope
		if !ok || json.Unmarshal(payload, &env) != nil {
			s.metrics.RecordCacheOperation(tier, false, perKey)
			continue
		}
		s.metrics.RecordCacheOperation(tier, true, perKey)
		result[key] = CachedValue{Value: env.Value, Stale: s.isStale(tier, env)}
	}
	return result
}

// Set stores value under the logical key with the tier's eviction TTL.
func (s *CacheService) Set(ctx context.Context, tier CacheTier, key string, value interface{}) error {
	if !s.ready(ctx) {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	env := cacheEnvelope{Value: payload, StoredAt: s.now().UTC(), Tier: tier}
	return s.write(ctx, tier, s.Key(tier, key), env)
}

func (s *CacheService) write(ctx context.Context, tier CacheTier, physical string, env cacheEnvelope) error {
	ttl := s.Policy(tier).EvictAfter
	start := time.Now()
	err := s.repo.Set(ctx, physical, env, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err == nil {
		return nil
	}
	if appErrors.Is(err, appErrors.ErrQuotaExceeded) {
		s.logger.Warn("cache quota exceeded, evicting volatile tiers", zap.String("key", physical))
		s.evictForQuota(ctx)
		if err = s.repo.Set(ctx, physical, env, ttl); err == nil {
			return nil
		}
	}
	s.fail(ctx, "set", physical, err)
	return err
}

// GetOrLoad serves key from cache, loading and storing it on a miss. Stale
// entries are reloaded; when that reload fails the stale value is kept.
// Concurrent callers for the same key share a single load.
func (s *CacheService) GetOrLoad(ctx context.Context, tier CacheTier, key string, dest interface{}, load func(context.Context) (interface{}, error)) (CacheStatus, error) {
	status := s.Get(ctx, tier, key, dest)
	if status == CacheFresh {
		return status, nil
	}

	physical := s.Key(tier, key)
	shared, err, _ := s.group.Do(physical, func() (interface{}, error) {
		if status == CacheMiss {
			var env cacheEnvelope
			if s.ready(ctx) && s.repo.Get(ctx, physical, &env) == nil && !s.isStale(tier, env) {
				return []byte(env.Value), nil
			}
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if s.ready(ctx) {
			_ = s.write(ctx, tier, physical, cacheEnvelope{Value: payload, StoredAt: s.now().UTC(), Tier: tier})
		}
		return payload, nil
	})
	if err != nil {
		if status == CacheStale {
			s.logger.Warn("revalidation failed, serving stale entry", zap.String("key", physical), zap.Error(err))
			return CacheStale, nil
		}
		return CacheMiss, err
	}
	if err := json.Unmarshal(shared.([]byte), dest); err != nil {
		return CacheMiss, err
	}
	return CacheLoaded, nil
}

// Delete removes logical keys. Deleting an absent key succeeds. Deletes run
// during the failure cooldown too.
func (s *CacheService) Delete(ctx context.Context, tier CacheTier, keys ...string) error {
	if !s.writable() || len(keys) == 0 {
		return nil
	}
	physical := make([]string, len(keys))
	for i, key := range keys {
		physical[i] = s.Key(tier, key)
	}
	if err := s.repo.Delete(ctx, physical...); err != nil {
		s.pendingFlush.Store(true)
		s.fail(ctx, "delete", strings.Join(physical, ","), err)
		return err
	}
	return nil
}

// Invalidate removes every entry whose logical key matches pattern, in any
// tier. It runs during the failure cooldown too; a failed invalidation keeps
// the cache off until the whole prefix has been flushed.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) (int, error) {
	if !s.writable() {
		return 0, nil
	}
	physical := s.prefix + ":*:" + pattern
	removed, err := s.repo.DeleteByPattern(ctx, physical)
	if err != nil {
		s.pendingFlush.Store(true)
		s.logger.Warn("cache invalidate failed, flush pending", zap.String("pattern", physical), zap.Error(err))
		s.fail(ctx, "invalidate", physical, err)
		return removed, err
	}
	s.metrics.RecordCacheEviction("*", removed)
	return removed, nil
}

// EvictTier removes every entry in a tier.
func (s *CacheService) EvictTier(ctx context.Context, tier CacheTier) (int, error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	removed, err := s.repo.DeleteByPattern(ctx, s.prefix+":"+string(tier)+":*")
	s.metrics.RecordCacheEviction(string(tier), removed)
	return removed, err
}

// Snapshot captures the current value of a key before a tentative update.
func (s *CacheService) Snapshot(ctx context.Context, tier CacheTier, key string) CacheSnapshot {
	snap := CacheSnapshot{Tier: tier, Key: key}
	if !s.ready(ctx) {
		return snap
	}
	var env cacheEnvelope
	if err := s.repo.Get(ctx, s.Key(tier, key), &env); err == nil {
		snap.envelope = &env
	}
	return snap
}

// Restore puts a key back to its snapshotted state verbatim.
func (s *CacheService) Restore(ctx context.Context, snap CacheSnapshot) error {
	if snap.envelope == nil || !s.ready(ctx) {
		return s.Delete(ctx, snap.Tier, snap.Key)
	}
	return s.write(ctx, snap.Tier, s.Key(snap.Tier, snap.Key), *snap.envelope)
}

func backendFailure(err error) bool {
	return appErrors.Is(err, appErrors.ErrCacheUnavailable) || appErrors.Is(err, appErrors.ErrQuotaExceeded)
}

func (s *CacheService) isStale(tier CacheTier, env cacheEnvelope) bool {
	staleAfter := s.Policy(tier).StaleAfter
	return staleAfter > 0 && s.now().Sub(env.StoredAt) > staleAfter
}

func (s *CacheService) evictForQuota(ctx context.Context) {
	for _, tier := range quotaEvictionOrder {
		removed, err := s.EvictTier(ctx, tier)
		if err != nil {
			s.logger.Warn("quota eviction failed", zap.String("tier", string(tier)), zap.Error(err))
			continue
		}
		s.logger.Info("quota eviction", zap.String("tier", string(tier)), zap.Int("removed", removed))
	}
}

func (s *CacheService) fail(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.metrics.RecordCacheError(op)
	until := s.now().Add(s.cooldown).UnixNano()
	s.disabledUntil.Store(until)
	s.metrics.SetCacheDisabled(true)
	s.logger.Warn("cache backend failure, disabling cache",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Duration("cooldown", s.cooldown),
		zap.Error(err),
	)
}
