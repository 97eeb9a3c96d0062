package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

type stubScoreSource struct {
	mu           sync.Mutex
	students     map[string]models.StudentSummary
	fields       []models.ExtraField
	settings     models.CalculationSettings
	settingsErr  error
	summaryErr   error
	summaryCalls [][]string
	onSummaries  func()
}

func newStubScoreSource() *stubScoreSource {
	return &stubScoreSource{students: map[string]models.StudentSummary{}, settings: models.DefaultCalculationSettings()}
}

func (s *stubScoreSource) add(code string, scores ...float64) {
	attempts := make([]models.ExamAttempt, 0, len(scores))
	for i, score := range scores {
		attempts = append(attempts, models.ExamAttempt{ExamID: fmt.Sprintf("e%d", i), ScorePercentage: score, IncludeInPass: true})
	}
	s.students[code] = models.StudentSummary{StudentID: "id-" + code, Code: code, ExamAttempts: attempts}
}

func (s *stubScoreSource) GetStudentSummaries(_ context.Context, codes []string) ([]models.StudentSummary, error) {
	s.mu.Lock()
	s.summaryCalls = append(s.summaryCalls, append([]string(nil), codes...))
	hook := s.onSummaries
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	out := make([]models.StudentSummary, 0, len(codes))
	for _, code := range codes {
		if summary, ok := s.students[code]; ok {
			out = append(out, summary)
		}
	}
	return out, nil
}

func (s *stubScoreSource) ListExtraFields(context.Context) ([]models.ExtraField, error) {
	return s.fields, nil
}

func (s *stubScoreSource) GetCalculationSettings(context.Context) (models.CalculationSettings, error) {
	return s.settings, s.settingsErr
}

func (s *stubScoreSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaryCalls)
}

func newTestBatch(cache *CacheService, size int) (*BatchService, *PerformanceMonitor) {
	monitor := NewPerformanceMonitor(config.MonitorConfig{}, nil, nil)
	svc := NewBatchService(NewScoreService(monitor, nil, nil), cache, monitor, nil, BatchOptions{
		BatchSize:    size,
		Concurrency:  4,
		CacheEnabled: cache != nil,
		Retry:        RetryPolicy{BaseDelay: time.Millisecond},
	})
	return svc, monitor
}

func TestProcessStudentsPartitionsAndReportsMissing(t *testing.T) {
	source := newStubScoreSource()
	source.add("S1", 80)
	source.add("S2", 40)
	source.add("S3", 70, 90)
	svc, monitor := newTestBatch(nil, 2)

	results := svc.ProcessStudents(context.Background(), []string{" S1", "S2", "S1", "", "S3", "S404"}, source)

	require.Len(t, results, 4)
	assert.NotContains(t, results, " S1")
	assert.True(t, results["S1"].Passed)
	assert.False(t, results["S2"].Passed)
	assert.Equal(t, 90.0, results["S3"].FinalScore)
	assert.False(t, results["S404"].Success)
	assert.Equal(t, models.CalcErrorStudentNotFound, results["S404"].Error)
	assert.Equal(t, [][]string{{"S1", "S2"}, {"S3", "S404"}}, source.summaryCalls)

	batch := monitor.Summary().Categories[models.OperationBatch]
	assert.Equal(t, 1, batch.Count)
	assert.Equal(t, 4, monitor.Summary().BatchStudentsProcessed)
}

func TestProcessStudentsUndecodableSummaryIsInvalidInput(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	source := newStubScoreSource()
	source.add("S1", 80)
	source.add("S2", 75)
	source.students["S2"] = models.StudentSummary{StudentID: "id-S2", Code: "S2", DecodeError: "decode exam attempts: unexpected end of JSON input"}
	source.add("S3", 60)
	svc, _ := newTestBatch(cache, 10)

	results := svc.ProcessStudents(context.Background(), []string{"S1", "S2", "S3"}, source)

	require.Len(t, results, 3)
	assert.True(t, results["S1"].Success)
	assert.True(t, results["S3"].Success)
	assert.False(t, results["S2"].Success)
	assert.Equal(t, models.CalcErrorInvalidInput, results["S2"].Error)

	source.summaryCalls = nil
	results = svc.ProcessStudents(context.Background(), []string{"S1", "S2", "S3"}, source)
	assert.Equal(t, [][]string{{"S2"}}, source.summaryCalls)
	assert.Equal(t, models.CalcErrorInvalidInput, results["S2"].Error)
}

func TestProcessStudentsEmptyInput(t *testing.T) {
	source := newStubScoreSource()
	svc, _ := newTestBatch(nil, 10)

	results := svc.ProcessStudents(context.Background(), nil, source)
	assert.Empty(t, results)
	assert.Zero(t, source.calls())
}

func TestProcessStudentsSettingsUnavailable(t *testing.T) {
	source := newStubScoreSource()
	source.settingsErr = errors.New("db down")
	svc, _ := newTestBatch(nil, 10)

	results := svc.ProcessStudents(context.Background(), []string{"S1", "S2"}, source)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, models.CalcErrorSettingsUnavailable, result.Error)
	}
	assert.Zero(t, source.calls())
}

func TestProcessStudentsFetchFailureIsolatedToBatch(t *testing.T) {
	source := newStubScoreSource()
	source.add("S1", 80)
	source.summaryErr = errors.New("timeout")
	svc, _ := newTestBatch(nil, 10)

	results := svc.ProcessStudents(context.Background(), []string{"S1", "S2"}, source)
	assert.Equal(t, models.CalcErrorFetchFailed, results["S1"].Error)
	assert.Equal(t, models.CalcErrorFetchFailed, results["S2"].Error)
}

func TestProcessStudentsServesCachedResults(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	source := newStubScoreSource()
	source.add("S1", 80)
	source.add("S2", 65)
	svc, monitor := newTestBatch(cache, 10)
	ctx := context.Background()

	first := svc.ProcessStudents(ctx, []string{"S1", "S2"}, source)
	require.Equal(t, 1, source.calls())

	second := svc.ProcessStudents(ctx, []string{"S1", "S2"}, source)
	assert.Equal(t, 1, source.calls())
	assert.Equal(t, first, second)

	summary := monitor.Summary()
	assert.Equal(t, 2, summary.CacheHits)
	assert.Equal(t, 2, summary.CacheMisses)
}

func TestProcessStudentsSettingsChangeBypassesCache(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	source := newStubScoreSource()
	source.add("S1", 55)
	svc, _ := newTestBatch(cache, 10)
	ctx := context.Background()

	before := svc.ProcessStudents(ctx, []string{"S1"}, source)
	assert.False(t, before["S1"].Passed)

	source.settings.OverallPassThreshold = 50
	_, err := NewCacheInvalidator(cache, nil).SettingsUpdated(ctx)
	require.NoError(t, err)

	after := svc.ProcessStudents(ctx, []string{"S1"}, source)
	assert.True(t, after["S1"].Passed)
	assert.Equal(t, 2, source.calls())
}

func TestProcessStudentsServesStaleWhenFetchFails(t *testing.T) {
	cache, _, clock := newRedisCache(t)
	source := newStubScoreSource()
	source.add("S1", 75)
	svc, _ := newTestBatch(cache, 10)
	ctx := context.Background()

	svc.ProcessStudents(ctx, []string{"S1"}, source)
	clock.Advance(cache.Policy(TierScores).StaleAfter + time.Second)
	source.summaryErr = errors.New("offline")

	results := svc.ProcessStudents(ctx, []string{"S1", "S2"}, source)
	assert.True(t, results["S1"].Success)
	assert.Equal(t, 75.0, results["S1"].FinalScore)
	assert.Equal(t, models.CalcErrorFetchFailed, results["S2"].Error)
}

func TestProcessStudentsCancelled(t *testing.T) {
	source := newStubScoreSource()
	for i := 0; i < 6; i++ {
		source.add(fmt.Sprintf("S%d", i), 70)
	}
	ctx, cancel := context.WithCancel(context.Background())
	source.onSummaries = cancel
	svc, _ := newTestBatch(nil, 2)

	results := svc.ProcessStudents(ctx, []string{"S0", "S1", "S2", "S3", "S4", "S5"}, source)
	require.Len(t, results, 6)
	assert.Equal(t, 1, source.calls())
	for _, code := range []string{"S2", "S3", "S4", "S5"} {
		assert.Equal(t, models.CalcErrorCancelled, results[code].Error, code)
	}
}

func TestCalculateStudent(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	source := newStubScoreSource()
	source.add("S1", 88)
	svc, _ := newTestBatch(cache, 10)
	ctx := context.Background()

	result, status, err := svc.CalculateStudent(ctx, "S1", source)
	require.NoError(t, err)
	assert.Equal(t, CacheLoaded, status)
	assert.Equal(t, 88.0, result.FinalScore)

	_, status, err = svc.CalculateStudent(ctx, "S1", source)
	require.NoError(t, err)
	assert.Equal(t, CacheFresh, status)
	assert.Equal(t, 1, source.calls())

	_, _, err = svc.CalculateStudent(ctx, "missing", source)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.CalculateStudent(ctx, "  ", source)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCalculateStudentDoesNotCacheFailures(t *testing.T) {
	cache, _, _ := newRedisCache(t)
	source := newStubScoreSource()
	source.students["S1"] = models.StudentSummary{StudentID: "id-S1", Code: "S1", DecodeError: "decode extra scores: invalid character"}
	svc, _ := newTestBatch(cache, 10)
	ctx := context.Background()

	result, status, err := svc.CalculateStudent(ctx, "S1", source)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, status)
	assert.False(t, result.Success)
	assert.Equal(t, models.CalcErrorInvalidInput, result.Error)

	source.add("S1", 91)
	result, status, err = svc.CalculateStudent(ctx, "S1", source)
	require.NoError(t, err)
	assert.Equal(t, CacheLoaded, status)
	assert.True(t, result.Success)
	assert.Equal(t, 91.0, result.FinalScore)
	assert.Equal(t, 2, source.calls())
}
