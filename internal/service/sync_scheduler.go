package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// SyncScheduler periodically runs a full sync when the last one is stale.
type SyncScheduler struct {
	sync     *SyncService
	interval time.Duration
	logger   *zap.Logger
}

// NewSyncScheduler constructs the scheduler.
func NewSyncScheduler(sync *SyncService, interval time.Duration, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncScheduler{sync: sync, interval: interval, logger: logger}
}

// Start checks immediately, then on every tick until ctx is done.
func (s *SyncScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
	s.logger.Sugar().Infow("sync scheduler started", "interval", s.interval.String())
}

// RunOnce runs a full sync if one is needed and reports whether it ran.
func (s *SyncScheduler) RunOnce(ctx context.Context) (bool, models.SyncResult) {
	needed, err := s.sync.SyncNeeded(ctx, models.SyncCategoryAll)
	if err != nil {
		s.logger.Sugar().Warnw("sync staleness check failed", "error", err)
		return false, models.SyncResult{}
	}
	if !needed {
		return false, models.SyncResult{}
	}
	return true, s.sync.SyncAllExtraScores(ctx)
}
