package dto

import "github.com/noah-isme/sma-adp-scoring/internal/models"

// UpdateSettingsRequest carries a partial settings update; nil fields keep the stored value.
type UpdateSettingsRequest struct {
	PassCalcMode         *string  `json:"pass_calc_mode" binding:"omitempty,oneof=best avg"`
	OverallPassThreshold *float64 `json:"overall_pass_threshold" binding:"omitempty,gte=0,lte=100"`
	ExamWeight           *float64 `json:"exam_weight" binding:"omitempty,gte=0"`
	ExamScoreSource      *string  `json:"exam_score_source" binding:"omitempty,oneof=final raw"`
	FailOnAnyExam        *bool    `json:"fail_on_any_exam"`
}

// Apply overlays the provided fields onto current.
func (r UpdateSettingsRequest) Apply(current models.CalculationSettings) models.CalculationSettings {
	if r.PassCalcMode != nil {
		current.PassCalcMode = models.PassCalcMode(*r.PassCalcMode)
	}
	if r.OverallPassThreshold != nil {
		current.OverallPassThreshold = *r.OverallPassThreshold
	}
	if r.ExamWeight != nil {
		current.ExamWeight = *r.ExamWeight
	}
	if r.ExamScoreSource != nil {
		current.ExamScoreSource = models.ExamScoreSource(*r.ExamScoreSource)
	}
	if r.FailOnAnyExam != nil {
		current.FailOnAnyExam = *r.FailOnAnyExam
	}
	return current
}

// SettingsResponse exposes the active settings together with the extra-field definitions.
type SettingsResponse struct {
	Settings    models.CalculationSettings `json:"settings"`
	ExtraFields []models.ExtraField        `json:"extra_fields"`
	Fingerprint string                     `json:"fingerprint"`
}
