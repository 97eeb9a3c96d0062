package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

// Logical cache keys shared by the batch processor and the invalidator.
const (
	keySettings    = "config:settings"
	keyExtraFields = "config:extra_fields"
	keyExamList    = "exams:list"

	patternAllScores    = "scores:*"
	patternSummaries    = "scores:summary:*"
	patternBatches      = "scores:batch:*"
	patternCalculations = "scores:calc:*"
	patternConfig       = "config:*"
)

// CalculationKey is the cache key of one student's result under a settings fingerprint.
func CalculationKey(code, settingsHash string) string {
	return "scores:calc:" + code + ":" + settingsHash
}

// ExamAttemptsKey is the cache key of one exam's attempt list.
func ExamAttemptsKey(examID string) string {
	return "exams:" + examID + ":attempts"
}

// Cache invalidation events accepted by Handle.
const (
	EventExamUpdated        = "exam_updated"
	EventStudentUpdated     = "student_updated"
	EventSettingsUpdated    = "settings_updated"
	EventExtraFieldsUpdated = "extra_fields_updated"
	EventExtraScoresSynced  = "extra_scores_synced"
)

// InvalidationEvent describes an upstream mutation.
type InvalidationEvent struct {
	Type         string
	ExamID       string
	StudentCodes []string
}

// CacheInvalidator maps mutation events to invalidation patterns. Shared
// calculation inputs always take the broadest pattern.
type CacheInvalidator struct {
	cache  *CacheService
	logger *zap.Logger
}

// NewCacheInvalidator constructs the invalidator.
func NewCacheInvalidator(cache *CacheService, logger *zap.Logger) *CacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

// Handle dispatches an event and returns the number of keys removed.
func (i *CacheInvalidator) Handle(ctx context.Context, event InvalidationEvent) (int, error) {
	switch event.Type {
	case EventExamUpdated:
		if event.ExamID == "" {
			return 0, appErrors.Clone(appErrors.ErrValidation, "exam_id is required")
		}
		return i.ExamUpdated(ctx, event.ExamID)
	case EventStudentUpdated:
		if len(event.StudentCodes) == 0 {
			return 0, appErrors.Clone(appErrors.ErrValidation, "student_codes is required")
		}
		total := 0
		var errs []error
		for _, code := range event.StudentCodes {
			n, err := i.StudentUpdated(ctx, code)
			total += n
			errs = append(errs, err)
		}
		return total, errors.Join(errs...)
	case EventSettingsUpdated:
		return i.SettingsUpdated(ctx)
	case EventExtraFieldsUpdated:
		return i.ExtraFieldsUpdated(ctx)
	case EventExtraScoresSynced:
		return i.ExtraScoresSynced(ctx, event.StudentCodes...)
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown invalidation event %q", event.Type))
	}
}

// ExamUpdated drops the exam list, that exam's attempts and every score entry.
func (i *CacheInvalidator) ExamUpdated(ctx context.Context, examID string) (int, error) {
	return i.invalidate(ctx, EventExamUpdated, keyExamList, ExamAttemptsKey(escapeGlob(examID)), patternAllScores)
}

// StudentUpdated drops the student's calculations and any summary or batch entry.
func (i *CacheInvalidator) StudentUpdated(ctx context.Context, code string) (int, error) {
	return i.invalidate(ctx, EventStudentUpdated, "scores:calc:"+escapeGlob(code)+":*", patternSummaries, patternBatches)
}

// SettingsUpdated drops cached configuration and every score entry.
func (i *CacheInvalidator) SettingsUpdated(ctx context.Context) (int, error) {
	return i.invalidate(ctx, EventSettingsUpdated, patternConfig, patternAllScores)
}

// ExtraFieldsUpdated drops cached configuration and every score entry.
func (i *CacheInvalidator) ExtraFieldsUpdated(ctx context.Context) (int, error) {
	return i.invalidate(ctx, EventExtraFieldsUpdated, patternConfig, patternAllScores)
}

// ExtraScoresSynced drops the listed students' entries, or every score entry
// when no codes are known.
func (i *CacheInvalidator) ExtraScoresSynced(ctx context.Context, codes ...string) (int, error) {
	if len(codes) == 0 {
		return i.invalidate(ctx, EventExtraScoresSynced, patternAllScores)
	}
	patterns := make([]string, 0, len(codes)+2)
	for _, code := range codes {
		patterns = append(patterns, "scores:calc:"+escapeGlob(code)+":*")
	}
	patterns = append(patterns, patternSummaries, patternBatches)
	return i.invalidate(ctx, EventExtraScoresSynced, patterns...)
}

func (i *CacheInvalidator) invalidate(ctx context.Context, event string, patterns ...string) (int, error) {
	if i == nil || i.cache == nil {
		return 0, nil
	}
	total := 0
	var errs []error
	for _, pattern := range patterns {
		n, err := i.cache.Invalidate(ctx, pattern)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", pattern, err))
		}
	}
	i.logger.Debug("cache invalidated", zap.String("event", event), zap.Strings("patterns", patterns), zap.Int("removed", total))
	return total, errors.Join(errs...)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
