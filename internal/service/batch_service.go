package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/logger"
)

// ScoreDataSource is the read side consumed by the batch processor.
type ScoreDataSource interface {
	GetStudentSummaries(ctx context.Context, codes []string) ([]models.StudentSummary, error)
	ListExtraFields(ctx context.Context) ([]models.ExtraField, error)
	GetCalculationSettings(ctx context.Context) (models.CalculationSettings, error)
}

// BatchOptions tunes the batch processor.
type BatchOptions struct {
	BatchSize    int
	Concurrency  int
	CacheEnabled bool
	Retry        RetryPolicy
}

// BatchOptionsFromConfig builds options from configuration.
func BatchOptionsFromConfig(cfg *config.Config) BatchOptions {
	return BatchOptions{
		BatchSize:    cfg.Scoring.BatchSize,
		Concurrency:  cfg.Scoring.Concurrency,
		CacheEnabled: cfg.Scoring.CacheEnabled,
		Retry:        NewRetryPolicy(cfg.DataSource),
	}
}

// BatchService computes results for many students: sequential batches,
// cached lookups, one summary query per batch and bounded concurrency within
// a batch. A failure for one student never affects the others.
type BatchService struct {
	scores  *ScoreService
	cache   *CacheService
	monitor *PerformanceMonitor
	logger  *zap.Logger
	opts    BatchOptions
}

// NewBatchService constructs the batch processor.
func NewBatchService(scores *ScoreService, cache *CacheService, monitor *PerformanceMonitor, logger *zap.Logger, opts BatchOptions) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scores == nil {
		scores = NewScoreService(monitor, nil, logger)
	}
	if cache == nil {
		cache = NewCacheService(nil, nil, logger, CacheOptions{})
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &BatchService{scores: scores, cache: cache, monitor: monitor, logger: logger, opts: opts}
}

type calculationContext struct {
	settings     models.CalculationSettings
	fields       []models.ExtraField
	settingsHash string
}

type batchStats struct {
	mu     sync.Mutex
	hits   int
	misses int
	failed int
}

func (b *batchStats) add(hits, misses, failed int) {
	b.mu.Lock()
	b.hits += hits
	b.misses += misses
	b.failed += failed
	b.mu.Unlock()
}

// ProcessStudents returns one result per distinct, non-blank code, keyed by
// the code with surrounding whitespace removed (see NormalizeCodes). Codes
// left unprocessed because ctx was cancelled carry the "cancelled" error code.
func (s *BatchService) ProcessStudents(ctx context.Context, codes []string, source ScoreDataSource) map[string]models.CalculationResult {
	codes = NormalizeCodes(codes)
	results := make(map[string]models.CalculationResult, len(codes))
	stop := s.monitor.Start(models.OperationBatch, "process_students")
	stats := &batchStats{}
	log := logger.WithContext(ctx, s.logger)

	calc, err := s.loadCalculationContext(ctx, source)
	if err != nil {
		log.Warn("calculation settings unavailable", zap.Int("students", len(codes)), zap.Error(err))
		for _, code := range codes {
			results[code] = models.FailedResult(models.CalcErrorSettingsUnavailable, models.DefaultCalculationSettings().OverallPassThreshold)
		}
		stop(models.OperationMeta{StudentCount: len(codes), Failed: true})
		return results
	}

	var mu sync.Mutex
	for start := 0; start < len(codes); start += s.opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.opts.BatchSize
		if end > len(codes) {
			end = len(codes)
		}
		s.processBatch(ctx, codes[start:end], source, calc, results, &mu, stats)
	}

	cancelled := 0
	for _, code := range codes {
		if _, ok := results[code]; !ok {
			results[code] = models.FailedResult(models.CalcErrorCancelled, calc.settings.OverallPassThreshold)
			cancelled++
		}
	}
	if cancelled > 0 {
		log.Warn("batch cancelled", zap.Int("cancelled", cancelled), zap.Int("students", len(codes)))
	}

	stop(models.OperationMeta{
		StudentCount: len(codes),
		CacheHits:    stats.hits,
		CacheMisses:  stats.misses,
		Failed:       stats.failed > 0 || cancelled > 0,
	})
	return results
}

func (s *BatchService) processBatch(ctx context.Context, codes []string, source ScoreDataSource, calc calculationContext, results map[string]models.CalculationResult, mu *sync.Mutex, stats *batchStats) {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = CalculationKey(code, calc.settingsHash)
	}

	stale := make(map[string]models.CalculationResult)
	misses := make([]string, 0, len(codes))
	if s.opts.CacheEnabled {
		cached := s.cache.GetMany(ctx, TierScores, keys)
		for i, code := range codes {
			entry, ok := cached[keys[i]]
			var result models.CalculationResult
			if ok && json.Unmarshal(entry.Value, &result) == nil {
				if !entry.Stale {
					mu.Lock()
					results[code] = result
					mu.Unlock()
					continue
				}
				stale[code] = result
			}
			misses = append(misses, code)
		}
	} else {
		misses = append(misses, codes...)
	}
	stats.add(len(codes)-len(misses), len(misses), 0)
	if len(misses) == 0 {
		return
	}

	summaries, err := s.fetchSummaries(ctx, source, misses)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WithContext(ctx, s.logger).Warn("student summary fetch failed", zap.Int("students", len(misses)), zap.Error(err))
		mu.Lock()
		for _, code := range misses {
			if prior, ok := stale[code]; ok {
				results[code] = prior
				continue
			}
			results[code] = models.FailedResult(models.CalcErrorFetchFailed, calc.settings.OverallPassThreshold)
		}
		mu.Unlock()
		stats.add(0, 0, len(misses)-len(stale))
		return
	}

	byCode := make(map[string]models.StudentSummary, len(summaries))
	for _, summary := range summaries {
		byCode[summary.Code] = summary
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, code := range misses {
		code := code
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result := s.calculate(ctx, code, byCode, calc)
			if !result.Success {
				stats.add(0, 0, 1)
			}
			mu.Lock()
			results[code] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *BatchService) calculate(ctx context.Context, code string, byCode map[string]models.StudentSummary, calc calculationContext) models.CalculationResult {
	summary, ok := byCode[code]
	if !ok {
		return models.FailedResult(models.CalcErrorStudentNotFound, calc.settings.OverallPassThreshold)
	}
	result := s.score(ctx, summary, calc)
	if result.Success && s.opts.CacheEnabled {
		if err := s.cache.Set(ctx, TierScores, CalculationKey(code, calc.settingsHash), result); err != nil {
			s.logger.Debug("result not cached", zap.String("student_code", code), zap.Error(err))
		}
	}
	return result
}

// CalculateStudent is the single-student read-through path. The returned
// status reports whether the result came from the cache.
func (s *BatchService) CalculateStudent(ctx context.Context, code string, source ScoreDataSource) (models.CalculationResult, CacheStatus, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.CalculationResult{}, CacheMiss, appErrors.Clone(appErrors.ErrValidation, "student code is required")
	}
	calc, err := s.loadCalculationContext(ctx, source)
	if err != nil {
		return models.CalculationResult{}, CacheMiss, appErrors.Wrap(err, appErrors.ErrSettingsUnavailable.Code, appErrors.ErrSettingsUnavailable.Status, appErrors.ErrSettingsUnavailable.Message)
	}

	load := func(ctx context.Context) (interface{}, error) {
		summaries, err := s.fetchSummaries(ctx, source, []string{code})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataSource.Code, appErrors.ErrDataSource.Status, appErrors.ErrDataSource.Message)
		}
		for _, summary := range summaries {
			if summary.Code != code {
				continue
			}
			result := s.score(ctx, summary, calc)
			if !result.Success {
				return nil, uncachedResult{result: result}
			}
			return result, nil
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	var (
		result models.CalculationResult
		status = CacheMiss
	)
	if s.opts.CacheEnabled {
		status, err = s.cache.GetOrLoad(ctx, TierScores, CalculationKey(code, calc.settingsHash), &result, load)
	} else {
		var value interface{}
		if value, err = load(ctx); err == nil {
			result = value.(models.CalculationResult)
		}
	}
	var failed uncachedResult
	if errors.As(err, &failed) {
		return failed.result, CacheMiss, nil
	}
	if err != nil {
		return models.CalculationResult{}, status, err
	}
	return result, status, nil
}

// uncachedResult carries a failed calculation out of a cache loader so it is
// returned to the caller without being stored. Only successes are cached.
type uncachedResult struct {
	result models.CalculationResult
}

func (u uncachedResult) Error() string { return "calculation failed: " + u.result.Error }

// score calculates one summary. Summaries whose stored record could not be
// decoded fail with invalid_input and are not scored.
func (s *BatchService) score(ctx context.Context, summary models.StudentSummary, calc calculationContext) models.CalculationResult {
	if summary.DecodeError != "" {
		logger.WithContext(ctx, s.logger).Warn("student summary undecodable",
			zap.String("student_code", summary.Code), zap.String("error", summary.DecodeError))
		return models.FailedResult(models.CalcErrorInvalidInput, calc.settings.OverallPassThreshold)
	}
	return s.scores.Calculate(BuildInput(summary, calc.fields, calc.settings))
}

func (s *BatchService) fetchSummaries(ctx context.Context, source ScoreDataSource, codes []string) ([]models.StudentSummary, error) {
	stop := s.monitor.Start(models.OperationQuery, "student_summaries")
	var summaries []models.StudentSummary
	err := s.opts.Retry.Do(ctx, s.logger, "student_summaries", func(ctx context.Context) error {
		var err error
		summaries, err = source.GetStudentSummaries(ctx, codes)
		return err
	})
	stop(models.OperationMeta{StudentCount: len(codes), Failed: err != nil})
	return summaries, err
}

func (s *BatchService) loadCalculationContext(ctx context.Context, source ScoreDataSource) (calculationContext, error) {
	var calc calculationContext
	if _, err := s.cache.GetOrLoad(ctx, TierConfig, keySettings, &calc.settings, func(ctx context.Context) (interface{}, error) {
		return s.query(ctx, "calculation_settings", func(ctx context.Context) (interface{}, error) {
			return source.GetCalculationSettings(ctx)
		})
	}); err != nil {
		return calc, err
	}
	if _, err := s.cache.GetOrLoad(ctx, TierConfig, keyExtraFields, &calc.fields, func(ctx context.Context) (interface{}, error) {
		return s.query(ctx, "extra_fields", func(ctx context.Context) (interface{}, error) {
			fields, err := source.ListExtraFields(ctx)
			if fields == nil {
				fields = []models.ExtraField{}
			}
			return fields, err
		})
	}); err != nil {
		return calc, err
	}
	calc.settingsHash = scoring.SettingsFingerprint(calc.settings, calc.fields)
	return calc, nil
}

func (s *BatchService) query(ctx context.Context, name string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	stop := s.monitor.Start(models.OperationQuery, name)
	var value interface{}
	err := s.opts.Retry.Do(ctx, s.logger, name, func(ctx context.Context) error {
		var err error
		value, err = fn(ctx)
		return err
	})
	stop(models.OperationMeta{Failed: err != nil})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// NormalizeCodes trims codes and drops blanks and duplicates, keeping first-seen order.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
