package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	policy := RetryPolicy{Retries: 2, BaseDelay: time.Millisecond, Timeout: time.Second}
	calls := 0
	err := policy.Do(context.Background(), nil, "summaries", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyGivesUpAfterRetries(t *testing.T) {
	policy := RetryPolicy{Retries: 2, BaseDelay: time.Millisecond}
	calls := 0
	err := policy.Do(context.Background(), nil, "summaries", func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyDoesNotRetryNotFound(t *testing.T) {
	policy := RetryPolicy{Retries: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := policy.Do(context.Background(), nil, "student_code", func(ctx context.Context) error {
		calls++
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyAppliesAttemptTimeout(t *testing.T) {
	policy := RetryPolicy{Retries: 0, Timeout: 10 * time.Millisecond}
	err := policy.Do(context.Background(), nil, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{Retries: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := policy.Do(ctx, nil, "cancelled", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
