package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
)

func TestSyncSchedulerRunsOnlyWhenStale(t *testing.T) {
	source := newStubSyncSource()
	source.bulkErr = nil
	source.bulkCount = 3
	store := newMemoryStore()
	svc, _ := newTestSync(source, store, nil)
	scheduler := NewSyncScheduler(svc, time.Hour, nil)

	ran, result := scheduler.RunOnce(context.Background())
	require.True(t, ran)
	assert.Equal(t, 3, result.UpdatedCount)

	ran, _ = scheduler.RunOnce(context.Background())
	assert.False(t, ran)

	store.values[models.ConfigKeyLastFullSync] = "2024-03-01T07:00:00Z"
	ran, _ = scheduler.RunOnce(context.Background())
	assert.True(t, ran)
}

func TestStudentSyncQueueProcessesJobs(t *testing.T) {
	source := newStubSyncSource()
	source.averages["quiz"] = []models.StudentScoreAggregate{{StudentID: "a", Value: 91}}
	svc, _ := newTestSync(source, newMemoryStore(), nil)
	queue := NewStudentSyncQueue(svc, config.SyncConfig{QueueWorkers: 1, QueueRetries: 1}, nil)

	_, err := queue.Enqueue("a")
	require.Error(t, err, "enqueue before start must fail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	id, err := queue.Enqueue("a")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return queue.Stats().Succeeded == 1 }, time.Second, 5*time.Millisecond)
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 91.0, source.upserts["a"]["quiz"])

	_, err = queue.Enqueue(" ")
	assert.Error(t, err)
}
