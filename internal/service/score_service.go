package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
)

// ScoreService runs the pure calculator with monitoring attached.
type ScoreService struct {
	monitor *PerformanceMonitor
	metrics *MetricsService
	logger  *zap.Logger
}

// NewScoreService constructs the service.
func NewScoreService(monitor *PerformanceMonitor, metrics *MetricsService, logger *zap.Logger) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{monitor: monitor, metrics: metrics, logger: logger}
}

// Calculate scores one input and records the timing.
func (s *ScoreService) Calculate(input models.CalculationInput) models.CalculationResult {
	started := time.Now()
	result := scoring.CalculateFinalScore(input)
	s.observe(input, result, time.Since(started))
	return result
}

// CalculateLegacy accepts and returns the legacy record shape.
func (s *ScoreService) CalculateLegacy(record dto.LegacyRecord) dto.LegacyResponse {
	input := scoring.FromLegacyFormat(record)
	return scoring.ToLegacyFormat(s.Calculate(input), record.Code, record.StudentName)
}

func (s *ScoreService) observe(input models.CalculationInput, result models.CalculationResult, duration time.Duration) {
	s.monitor.Record(models.OperationCalculation, "calculate_final_score", duration, models.OperationMeta{
		StudentCount: 1,
		Failed:       !result.Success,
	})
	s.metrics.RecordCalculation(result)
	if !result.Success {
		s.logger.Warn("calculation failed",
			zap.String("student_id", input.StudentID),
			zap.String("student_code", input.StudentCode),
			zap.String("error", result.Error),
		)
	}
}

// BuildInput assembles a calculation input from a fetched summary.
func BuildInput(summary models.StudentSummary, fields []models.ExtraField, settings models.CalculationSettings) models.CalculationInput {
	attempts := summary.ExamAttempts
	if attempts == nil {
		attempts = []models.ExamAttempt{}
	}
	extras := summary.ExtraScores
	if extras == nil {
		extras = map[string]models.ExtraValue{}
	}
	return models.CalculationInput{
		StudentID:    summary.StudentID,
		StudentCode:  summary.Code,
		StudentName:  summary.Name,
		ExamAttempts: attempts,
		ExtraScores:  extras,
		ExtraFields:  fields,
		Settings:     settings,
	}
}
