package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/jobs"
)

const studentSyncJobType = "student_extra_scores"

// StudentSyncQueue runs SyncStudentExtraScores in the background, typically
// right after an exam submission. Failed runs are retried by the queue.
type StudentSyncQueue struct {
	sync  *SyncService
	queue *jobs.Queue
}

// NewStudentSyncQueue builds the queue; call Start before enqueueing.
func NewStudentSyncQueue(sync *SyncService, cfg config.SyncConfig, logger *zap.Logger) *StudentSyncQueue {
	q := &StudentSyncQueue{sync: sync}
	q.queue = jobs.NewQueue("student-sync", q.handle, jobs.QueueConfig{
		Workers:       cfg.QueueWorkers,
		MaxRetries:    cfg.QueueRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: time.Minute,
		Logger:        logger,
	})
	return q
}

// Start launches the workers.
func (q *StudentSyncQueue) Start(ctx context.Context) { q.queue.Start(ctx) }

// Stop cancels the workers and waits for them.
func (q *StudentSyncQueue) Stop() { q.queue.Stop() }

// Stats reports queue counters.
func (q *StudentSyncQueue) Stats() jobs.Stats { return q.queue.Stats() }

// Enqueue schedules a sync for studentID and returns the job id. A request for
// a student whose sync is still queued returns the queued job's id.
func (q *StudentSyncQueue) Enqueue(studentID string) (string, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	return q.queue.Enqueue(jobs.Job{Key: studentID, Type: studentSyncJobType, Payload: studentID})
}

func (q *StudentSyncQueue) handle(ctx context.Context, job jobs.Job) error {
	studentID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	result := q.sync.SyncStudentExtraScores(ctx, studentID)
	if !result.Success {
		return fmt.Errorf("student %s sync: %s", studentID, result.Error)
	}
	return nil
}
