package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

// RetryPolicy bounds data-source calls with a per-attempt timeout and
// exponential backoff between attempts.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	Timeout   time.Duration
}

// NewRetryPolicy builds a policy from data-source configuration.
func NewRetryPolicy(cfg config.DataSourceConfig) RetryPolicy {
	return RetryPolicy{Retries: cfg.Retries, BaseDelay: cfg.RetryBaseDelay, Timeout: cfg.Timeout}
}

// Do runs fn until it succeeds, returns a permanent error, exhausts its
// retries, or ctx is cancelled. Not-found and validation errors are never retried.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = orDefault(p.BaseDelay, 200*time.Millisecond)
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("data source call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, policy, notify)
}

func permanent(err error) bool {
	return appErrors.Is(err, appErrors.ErrNotFound) || appErrors.Is(err, appErrors.ErrValidation)
}
