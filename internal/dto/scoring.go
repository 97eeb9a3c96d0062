package dto

import (
	"time"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// CalculateRequest scores one student from a fully supplied input. Settings
// fall back to the defaults when omitted.
type CalculateRequest struct {
	StudentID    string                       `json:"student_id"`
	StudentCode  string                       `json:"student_code"`
	StudentName  string                       `json:"student_name"`
	ExamAttempts []models.ExamAttempt         `json:"exam_attempts"`
	ExtraScores  map[string]models.ExtraValue `json:"extra_scores"`
	ExtraFields  []models.ExtraField          `json:"extra_fields"`
	Settings     *models.CalculationSettings  `json:"settings"`
}

// Input converts the request to a calculation input.
func (r CalculateRequest) Input() models.CalculationInput {
	settings := models.DefaultCalculationSettings()
	if r.Settings != nil {
		settings = *r.Settings
	}
	input := models.CalculationInput{
		StudentID:    r.StudentID,
		StudentCode:  r.StudentCode,
		StudentName:  r.StudentName,
		ExamAttempts: r.ExamAttempts,
		ExtraScores:  r.ExtraScores,
		ExtraFields:  r.ExtraFields,
		Settings:     settings,
	}
	if input.ExamAttempts == nil {
		input.ExamAttempts = []models.ExamAttempt{}
	}
	if input.ExtraScores == nil {
		input.ExtraScores = map[string]models.ExtraValue{}
	}
	if input.ExtraFields == nil {
		input.ExtraFields = []models.ExtraField{}
	}
	return input
}

// BatchRequest lists the student codes to score.
type BatchRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,max=5000"`
}

// BatchResponse carries one result per distinct code.
type BatchResponse struct {
	Results   map[string]models.CalculationResult `json:"results"`
	Processed int                                 `json:"processed"`
	Succeeded int                                 `json:"succeeded"`
	Failed    int                                 `json:"failed"`
}

// LegacyBatchResponse is the batch response in the legacy record shape.
type LegacyBatchResponse struct {
	Results   map[string]LegacyResponse `json:"results"`
	Processed int                       `json:"processed"`
}

// InvalidateCacheRequest describes an upstream mutation.
type InvalidateCacheRequest struct {
	Event        string   `json:"event" binding:"required,oneof=exam_updated student_updated settings_updated extra_fields_updated extra_scores_synced"`
	ExamID       string   `json:"exam_id"`
	StudentCodes []string `json:"student_codes"`
}

// InvalidateCacheResponse reports how many keys were removed.
type InvalidateCacheResponse struct {
	Event   string `json:"event"`
	Removed int    `json:"removed"`
}

// SyncTimestampsResponse pairs timestamps with staleness flags.
type SyncTimestampsResponse struct {
	Timestamps    models.SyncTimestamps `json:"timestamps"`
	SyncNeeded    map[string]bool       `json:"sync_needed"`
	MaxAgeMinutes int                   `json:"max_age_minutes"`
}

// SyncJobResponse acknowledges an enqueued student sync.
type SyncJobResponse struct {
	JobID     string    `json:"job_id"`
	StudentID string    `json:"student_id"`
	QueuedAt  time.Time `json:"queued_at"`
}

// StoreAccessCodeRequest stores a student's access code.
type StoreAccessCodeRequest struct {
	Code string `json:"code" binding:"required,min=4,max=64"`
}

// ValidateAccessCodeRequest checks a submitted access code.
type ValidateAccessCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// ValidateAccessCodeResponse reports the validation outcome.
type ValidateAccessCodeResponse struct {
	Valid    bool `json:"valid"`
	Cleared  bool `json:"cleared"`
	Failures int  `json:"failures"`
}
