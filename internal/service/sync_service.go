package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/logger"
)

const (
	defaultSyncMaxAgeMinutes = 30
	noAttendanceMessage      = "No attendance sessions found"
)

// SyncDataSource reads authoritative records and writes derived extra scores.
type SyncDataSource interface {
	AverageScoresByExamType(ctx context.Context, examType string) ([]models.StudentScoreAggregate, error)
	StudentAverageScore(ctx context.Context, studentID, examType string) (*float64, error)
	AttendanceStats(ctx context.Context) (models.AttendanceStats, error)
	StudentAttendance(ctx context.Context, studentID string) (attended, total int, err error)
	StudentCode(ctx context.Context, studentID string) (string, error)
	UpsertExtraScore(ctx context.Context, studentID, key string, value float64) error
	BulkSyncExtraScores(ctx context.Context) (int, error)
}

// KeyValueStore persists sync timestamps. SetValues writes all values or none.
type KeyValueStore interface {
	GetValues(ctx context.Context, keys []string) (map[string]string, error)
	SetValues(ctx context.Context, values map[string]string) error
}

// SyncOptions tunes the sync engine.
type SyncOptions struct {
	MaxAgeMinutes     int
	UpsertConcurrency int
	Retry             RetryPolicy
}

// SyncOptionsFromConfig builds options from configuration.
func SyncOptionsFromConfig(cfg *config.Config) SyncOptions {
	return SyncOptions{
		MaxAgeMinutes:     cfg.Sync.MaxAgeMinutes,
		UpsertConcurrency: cfg.Sync.UpsertConcurrency,
		Retry:             NewRetryPolicy(cfg.DataSource),
	}
}

// SyncService reconciles source tables into the derived extra-score store.
// Upserts are best effort: per-record failures are logged and counted and
// never abort the run.
type SyncService struct {
	source      SyncDataSource
	store       KeyValueStore
	invalidator *CacheInvalidator
	monitor     *PerformanceMonitor
	metrics     *MetricsService
	logger      *zap.Logger
	opts        SyncOptions
	now         func() time.Time

	mu      sync.Mutex
	running map[models.SyncCategory]bool
}

// NewSyncService constructs the sync engine.
func NewSyncService(source SyncDataSource, store KeyValueStore, invalidator *CacheInvalidator, monitor *PerformanceMonitor, metrics *MetricsService, logger *zap.Logger, opts SyncOptions) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAgeMinutes <= 0 {
		opts.MaxAgeMinutes = defaultSyncMaxAgeMinutes
	}
	if opts.UpsertConcurrency <= 0 {
		opts.UpsertConcurrency = 8
	}
	return &SyncService{
		source:      source,
		store:       store,
		invalidator: invalidator,
		monitor:     monitor,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		running:     make(map[models.SyncCategory]bool),
	}
}

// SyncHomeworkScores derives the homework average per student.
func (s *SyncService) SyncHomeworkScores(ctx context.Context) models.SyncResult {
	return s.guarded(ctx, models.SyncCategoryHomework, s.syncHomework)
}

// SyncQuizScores derives the quiz average per student.
func (s *SyncService) SyncQuizScores(ctx context.Context) models.SyncResult {
	return s.guarded(ctx, models.SyncCategoryQuiz, s.syncQuiz)
}

// SyncAttendance derives the attendance percentage per student.
func (s *SyncService) SyncAttendance(ctx context.Context) models.SyncResult {
	return s.guarded(ctx, models.SyncCategoryAttendance, s.syncAttendance)
}

// SyncAllExtraScores runs the single-statement bulk sync, falling back to
// concurrent per-category syncs when the bulk statement fails.
func (s *SyncService) SyncAllExtraScores(ctx context.Context) models.SyncResult {
	return s.guarded(ctx, models.SyncCategoryAll, s.syncAll)
}

// SyncCategory dispatches to the sync for category. A run rejected because
// the same category is already syncing returns ErrSyncInProgress.
func (s *SyncService) SyncCategory(ctx context.Context, category models.SyncCategory) (models.SyncResult, error) {
	var result models.SyncResult
	switch category {
	case models.SyncCategoryHomework:
		result = s.SyncHomeworkScores(ctx)
	case models.SyncCategoryQuiz:
		result = s.SyncQuizScores(ctx)
	case models.SyncCategoryAttendance:
		result = s.SyncAttendance(ctx)
	case models.SyncCategoryAll:
		result = s.SyncAllExtraScores(ctx)
	default:
		return models.SyncResult{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sync category %q", category))
	}
	if !result.Success && result.Error == appErrors.ErrSyncInProgress.Message {
		return result, appErrors.Clone(appErrors.ErrSyncInProgress, "")
	}
	return result, nil
}

// SyncStudentExtraScores recomputes every category for one student, typically
// right after a submission.
func (s *SyncService) SyncStudentExtraScores(ctx context.Context, studentID string) models.SyncResult {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return s.failed(models.SyncCategoryAll, "student id is required", appErrors.ErrValidation)
	}
	stop := s.monitor.Start(models.OperationSync, "sync_student")
	log := logger.WithContext(ctx, s.logger).With(zap.String("student_id", studentID))

	updated, failed := 0, 0
	var errs []error
	for _, category := range models.SyncCategories {
		value, ok, err := s.studentValue(ctx, studentID, category)
		if err != nil {
			failed++
			errs = append(errs, err)
			log.Warn("student sync read failed", zap.String("category", string(category)), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := s.upsert(ctx, studentID, category, value); err != nil {
			failed++
			errs = append(errs, err)
			log.Warn("student extra score upsert failed", zap.String("category", string(category)), zap.Error(err))
			continue
		}
		updated++
	}

	if updated > 0 {
		s.invalidateStudent(ctx, studentID)
	}
	result := models.SyncResult{
		Success:      failed == 0,
		Category:     models.SyncCategoryAll,
		UpdatedCount: updated,
		FailedCount:  failed,
		Message:      fmt.Sprintf("Synced %d extra score categories for student %s", updated, studentID),
		Timestamp:    s.now().UTC(),
	}
	if err := errors.Join(errs...); err != nil {
		result.Error = err.Error()
	}
	s.finish(stop, result)
	return result
}

// GetSyncTimestamps reads the last successful sync time of every category.
// Unparseable values are treated as never synced.
func (s *SyncService) GetSyncTimestamps(ctx context.Context) (models.SyncTimestamps, error) {
	keys := []string{
		models.SyncTimestampKey(models.SyncCategoryHomework),
		models.SyncTimestampKey(models.SyncCategoryQuiz),
		models.SyncTimestampKey(models.SyncCategoryAttendance),
		models.SyncTimestampKey(models.SyncCategoryAll),
	}
	var values map[string]string
	err := s.opts.Retry.Do(ctx, s.logger, "sync_timestamps", func(ctx context.Context) error {
		var err error
		values, err = s.store.GetValues(ctx, keys)
		return err
	})
	if err != nil {
		return models.SyncTimestamps{}, appErrors.Wrap(err, appErrors.ErrDataSource.Code, appErrors.ErrDataSource.Status, "failed to read sync timestamps")
	}
	parse := func(key string) *time.Time {
		raw, ok := values[key]
		if !ok || raw == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.logger.Warn("ignoring malformed sync timestamp", zap.String("key", key), zap.String("value", raw))
			return nil
		}
		return &ts
	}
	return models.SyncTimestamps{
		Homework:     parse(keys[0]),
		Quiz:         parse(keys[1]),
		Attendance:   parse(keys[2]),
		LastFullSync: parse(keys[3]),
	}, nil
}

// SyncNeeded reports whether category has not been synced within the configured max age.
func (s *SyncService) SyncNeeded(ctx context.Context, category models.SyncCategory) (bool, error) {
	timestamps, err := s.GetSyncTimestamps(ctx)
	if err != nil {
		return false, err
	}
	return isSyncNeededAt(timestamps.For(category), s.opts.MaxAgeMinutes, s.now()), nil
}

// MaxAgeMinutes returns the staleness window used by SyncNeeded.
func (s *SyncService) MaxAgeMinutes() int {
	return s.opts.MaxAgeMinutes
}

// IsSyncNeeded is true when last is nil or older than maxAgeMinutes. A
// non-positive maxAgeMinutes uses the default of 30.
func IsSyncNeeded(last *time.Time, maxAgeMinutes int) bool {
	return isSyncNeededAt(last, maxAgeMinutes, time.Now())
}

func isSyncNeededAt(last *time.Time, maxAgeMinutes int, now time.Time) bool {
	if last == nil || last.IsZero() {
		return true
	}
	if maxAgeMinutes <= 0 {
		maxAgeMinutes = defaultSyncMaxAgeMinutes
	}
	return now.Sub(*last) > time.Duration(maxAgeMinutes)*time.Minute
}

func (s *SyncService) guarded(ctx context.Context, category models.SyncCategory, run func(context.Context) models.SyncResult) models.SyncResult {
	s.mu.Lock()
	if s.running[category] {
		s.mu.Unlock()
		return s.failed(category, "sync already running", appErrors.ErrSyncInProgress)
	}
	s.running[category] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, category)
		s.mu.Unlock()
	}()
	return run(ctx)
}

func (s *SyncService) syncHomework(ctx context.Context) models.SyncResult {
	return s.syncExamType(ctx, models.SyncCategoryHomework)
}

func (s *SyncService) syncQuiz(ctx context.Context) models.SyncResult {
	return s.syncExamType(ctx, models.SyncCategoryQuiz)
}

func (s *SyncService) syncExamType(ctx context.Context, category models.SyncCategory) models.SyncResult {
	stop := s.monitor.Start(models.OperationSync, "sync_"+string(category))
	var aggregates []models.StudentScoreAggregate
	err := s.opts.Retry.Do(ctx, s.logger, "read_"+string(category), func(ctx context.Context) error {
		var err error
		aggregates, err = s.source.AverageScoresByExamType(ctx, string(category))
		return err
	})
	if err != nil {
		result := s.failed(category, fmt.Sprintf("Failed to read %s scores", category), err)
		s.finish(stop, result)
		return result
	}

	updated, failed := s.upsertAll(ctx, category, aggregates)
	result := s.completed(ctx, category, updated, failed, fmt.Sprintf("Synced %s scores for %d students", category, updated))
	s.finish(stop, result)
	return result
}

func (s *SyncService) syncAttendance(ctx context.Context) models.SyncResult {
	category := models.SyncCategoryAttendance
	stop := s.monitor.Start(models.OperationSync, "sync_attendance")
	var stats models.AttendanceStats
	err := s.opts.Retry.Do(ctx, s.logger, "read_attendance", func(ctx context.Context) error {
		var err error
		stats, err = s.source.AttendanceStats(ctx)
		return err
	})
	if err != nil {
		result := s.failed(category, "Failed to read attendance", err)
		s.finish(stop, result)
		return result
	}
	if stats.TotalSessions == 0 {
		result := s.completed(ctx, category, 0, 0, noAttendanceMessage)
		s.finish(stop, result)
		return result
	}

	aggregates := make([]models.StudentScoreAggregate, 0, len(stats.Students))
	for _, student := range stats.Students {
		aggregates = append(aggregates, models.StudentScoreAggregate{
			StudentID: student.StudentID,
			Value:     AttendancePercentage(student.AttendedSessions, stats.TotalSessions),
		})
	}
	updated, failed := s.upsertAll(ctx, category, aggregates)
	result := s.completed(ctx, category, updated, failed, fmt.Sprintf("Synced attendance for %d students", updated))
	s.finish(stop, result)
	return result
}

func (s *SyncService) syncAll(ctx context.Context) models.SyncResult {
	stop := s.monitor.Start(models.OperationSync, "sync_all")
	log := logger.WithContext(ctx, s.logger)

	var updated int
	err := s.opts.Retry.Do(ctx, s.logger, "bulk_sync", func(ctx context.Context) error {
		var err error
		updated, err = s.source.BulkSyncExtraScores(ctx)
		return err
	})
	if err == nil {
		result := s.completed(ctx, models.SyncCategoryAll, updated, 0, fmt.Sprintf("Synced extra scores for %d students", updated))
		s.finish(stop, result)
		return result
	}
	if ctx.Err() != nil {
		result := s.failed(models.SyncCategoryAll, "Sync cancelled", ctx.Err())
		s.finish(stop, result)
		return result
	}
	log.Warn("bulk extra score sync failed, falling back to per-category sync", zap.Error(err))

	results := make([]models.SyncResult, len(models.SyncCategories))
	runners := map[models.SyncCategory]func(context.Context) models.SyncResult{
		models.SyncCategoryHomework:   s.SyncHomeworkScores,
		models.SyncCategoryQuiz:       s.SyncQuizScores,
		models.SyncCategoryAttendance: s.SyncAttendance,
	}
	var g errgroup.Group
	for i, category := range models.SyncCategories {
		i, run := i, runners[category]
		g.Go(func() error {
			results[i] = run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	combined := models.SyncResult{Success: true, Category: models.SyncCategoryAll, Timestamp: s.now().UTC()}
	messages := make([]string, 0, len(results))
	var errs []string
	for _, r := range results {
		combined.UpdatedCount += r.UpdatedCount
		combined.FailedCount += r.FailedCount
		messages = append(messages, r.Message)
		if !r.Success {
			combined.Success = false
			errs = append(errs, fmt.Sprintf("%s: %s", r.Category, r.Error))
		}
	}
	combined.Message = strings.Join(messages, "; ")
	combined.Error = strings.Join(errs, "; ")
	if combined.Success && combined.FailedCount == 0 {
		s.persistTimestamps(ctx, models.SyncCategoryAll)
	}
	s.finish(stop, combined)
	return combined
}

func (s *SyncService) upsertAll(ctx context.Context, category models.SyncCategory, aggregates []models.StudentScoreAggregate) (int, int) {
	var updated, failed atomic.Int64
	log := logger.WithContext(ctx, s.logger)
	var g errgroup.Group
	g.SetLimit(s.opts.UpsertConcurrency)
	for _, aggregate := range aggregates {
		aggregate := aggregate
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			if err := s.upsert(ctx, aggregate.StudentID, category, aggregate.Value); err != nil {
				failed.Add(1)
				log.Warn("extra score upsert failed",
					zap.String("student_id", aggregate.StudentID),
					zap.String("category", string(category)),
					zap.Error(err),
				)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(updated.Load()), int(failed.Load())
}

func (s *SyncService) upsert(ctx context.Context, studentID string, category models.SyncCategory, value float64) error {
	return s.opts.Retry.Do(ctx, s.logger, "upsert_extra_score", func(ctx context.Context) error {
		return s.source.UpsertExtraScore(ctx, studentID, category.ExtraScoreKey(), value)
	})
}

func (s *SyncService) studentValue(ctx context.Context, studentID string, category models.SyncCategory) (float64, bool, error) {
	if category == models.SyncCategoryAttendance {
		var attended, total int
		err := s.opts.Retry.Do(ctx, s.logger, "read_student_attendance", func(ctx context.Context) error {
			var err error
			attended, total, err = s.source.StudentAttendance(ctx, studentID)
			return err
		})
		if err != nil || total == 0 {
			return 0, false, err
		}
		return AttendancePercentage(attended, total), true, nil
	}

	var avg *float64
	err := s.opts.Retry.Do(ctx, s.logger, "read_student_"+string(category), func(ctx context.Context) error {
		var err error
		avg, err = s.source.StudentAverageScore(ctx, studentID, string(category))
		return err
	})
	if err != nil || avg == nil {
		return 0, false, err
	}
	return *avg, true, nil
}

// completed reports a run that read its source. The category timestamp only
// advances when every record was written, so a run with failures stays due;
// a run where every record failed is reported as unsuccessful.
func (s *SyncService) completed(ctx context.Context, category models.SyncCategory, updated, failed int, message string) models.SyncResult {
	result := models.SyncResult{
		Success:      true,
		Category:     category,
		UpdatedCount: updated,
		FailedCount:  failed,
		Message:      message,
		Timestamp:    s.now().UTC(),
	}
	if failed > 0 {
		result.Message = fmt.Sprintf("%s (%d failed)", message, failed)
	}
	if failed > 0 && updated == 0 {
		result.Success = false
		result.Error = fmt.Sprintf("all %d upserts failed", failed)
	}
	if failed == 0 {
		if category == models.SyncCategoryAll {
			s.persistTimestamps(ctx, append([]models.SyncCategory{models.SyncCategoryAll}, models.SyncCategories...)...)
		} else {
			s.persistTimestamps(ctx, category)
		}
	}
	if updated > 0 {
		if _, err := s.invalidator.ExtraScoresSynced(ctx); err != nil {
			s.logger.Warn("score cache invalidation failed after sync", zap.String("category", string(category)), zap.Error(err))
		}
	}
	return result
}

func (s *SyncService) failed(category models.SyncCategory, message string, err error) models.SyncResult {
	return models.SyncResult{
		Success:   false,
		Category:  category,
		Message:   message,
		Timestamp: s.now().UTC(),
		Error:     err.Error(),
	}
}

func (s *SyncService) finish(stop func(models.OperationMeta) models.OperationRecord, result models.SyncResult) {
	stop(models.OperationMeta{StudentCount: result.UpdatedCount, Failed: !result.Success})
	s.metrics.RecordSync(result)
	fields := []zap.Field{
		zap.String("category", string(result.Category)),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("failed", result.FailedCount),
	}
	if !result.Success {
		s.logger.Warn("sync failed", append(fields, zap.String("error", result.Error))...)
		return
	}
	s.logger.Info("sync completed", fields...)
}

// persistTimestamps stamps every category with the current time in one write.
func (s *SyncService) persistTimestamps(ctx context.Context, categories ...models.SyncCategory) {
	if s.store == nil || len(categories) == 0 {
		return
	}
	stamp := s.now().UTC().Format(time.RFC3339)
	values := make(map[string]string, len(categories))
	for _, category := range categories {
		values[models.SyncTimestampKey(category)] = stamp
	}
	err := s.opts.Retry.Do(ctx, s.logger, "persist_sync_timestamps", func(ctx context.Context) error {
		return s.store.SetValues(ctx, values)
	})
	if err != nil {
		s.logger.Warn("failed to persist sync timestamps", zap.Int("keys", len(values)), zap.Error(err))
	}
}

func (s *SyncService) invalidateStudent(ctx context.Context, studentID string) {
	code, err := s.source.StudentCode(ctx, studentID)
	if err != nil {
		s.logger.Warn("student code lookup failed, invalidating all scores", zap.String("student_id", studentID), zap.Error(err))
		_, err = s.invalidator.ExtraScoresSynced(ctx)
	} else {
		_, err = s.invalidator.ExtraScoresSynced(ctx, code)
	}
	if err != nil {
		s.logger.Warn("score cache invalidation failed after student sync", zap.String("student_id", studentID), zap.Error(err))
	}
}

// AttendancePercentage is attended/total as an integer percentage.
func AttendancePercentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended) * 100 / float64(total))
}
