package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/repository"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	"github.com/noah-isme/sma-adp-scoring/pkg/cache"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	"github.com/noah-isme/sma-adp-scoring/pkg/database"
	"github.com/noah-isme/sma-adp-scoring/pkg/logger"
)

// app holds the process-wide dependency graph shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	source      *repository.DataSource
	metrics     *service.MetricsService
	monitor     *service.PerformanceMonitor
	cache       *service.CacheService
	invalidator *service.CacheInvalidator
	scores      *service.ScoreService
	batch       *service.BatchService
	sync        *service.SyncService
	accessCodes *service.AccessCodeStore
	settings    *service.SettingsService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		_ = logr.Sync()
		return nil, err
	}

	// The cache is optional: without Redis every read falls through to Postgres.
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	a := &app{cfg: cfg, logger: logr, db: db, redis: redisClient}
	a.source = repository.NewDataSource(db)
	a.metrics = service.NewMetricsService()
	a.monitor = service.NewPerformanceMonitor(cfg.Monitor, a.metrics, logr)
	a.cache = service.NewCacheService(cacheRepo, a.metrics, logr, service.CacheOptions{
		Enabled:  redisClient != nil,
		Prefix:   cfg.Cache.Prefix,
		Cooldown: cfg.Cache.DisableCooldown,
		Policies: service.TierPoliciesFromConfig(cfg.Cache),
	})
	a.invalidator = service.NewCacheInvalidator(a.cache, logr)
	a.scores = service.NewScoreService(a.monitor, a.metrics, logr)
	a.batch = service.NewBatchService(a.scores, a.cache, a.monitor, logr, service.BatchOptionsFromConfig(cfg))
	a.sync = service.NewSyncService(a.source, a.source, a.invalidator, a.monitor, a.metrics, logr, service.SyncOptionsFromConfig(cfg))
	a.accessCodes = service.NewAccessCodeStore(a.cache, cfg.AccessCode.MaxFailures, logr)
	a.settings = service.NewSettingsService(a.source, a.invalidator, logr)
	return a, nil
}

func (a *app) close() {
	a.monitor.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
