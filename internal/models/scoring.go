package models

// PassCalcMode defines how included exam attempts are aggregated.
type PassCalcMode string

const (
	PassCalcModeBest PassCalcMode = "best"
	PassCalcModeAvg  PassCalcMode = "avg"
)

// ExamScoreSource selects which attempt score is authoritative.
type ExamScoreSource string

const (
	ExamScoreSourceFinal ExamScoreSource = "final"
	ExamScoreSourceRaw   ExamScoreSource = "raw"
)

// ExtraFieldType tags the value variant stored for an extra field.
type ExtraFieldType string

const (
	ExtraFieldTypeNumber  ExtraFieldType = "number"
	ExtraFieldTypeText    ExtraFieldType = "text"
	ExtraFieldTypeBoolean ExtraFieldType = "boolean"
)

// Calculation error codes reported through CalculationResult.Error.
const (
	CalcErrorInvalidSettings     = "invalid_settings"
	CalcErrorInvalidInput        = "invalid_input"
	CalcErrorCalculation         = "calculation_error"
	CalcErrorStudentNotFound     = "student_not_found"
	CalcErrorFetchFailed         = "fetch_failed"
	CalcErrorSettingsUnavailable = "settings_unavailable"
	CalcErrorCancelled           = "cancelled"
)

// ExamAttempt is a single exam result attached to a calculation.
type ExamAttempt struct {
	ExamID               string   `json:"exam_id"`
	ExamTitle            string   `json:"exam_title"`
	ScorePercentage      float64  `json:"score_percentage"`
	FinalScorePercentage *float64 `json:"final_score_percentage"`
	IncludeInPass        bool     `json:"include_in_pass"`
	PassThreshold        *float64 `json:"pass_threshold"`
}

// ExtraField describes an administrator-defined supplementary metric.
type ExtraField struct {
	Key           string         `db:"key" json:"key"`
	Label         string         `db:"label" json:"label"`
	Type          ExtraFieldType `db:"type" json:"type"`
	IncludeInPass bool           `db:"include_in_pass" json:"include_in_pass"`
	PassWeight    float64        `db:"pass_weight" json:"pass_weight" validate:"gte=0"`
	MaxPoints     *float64       `db:"max_points" json:"max_points" validate:"omitempty,gt=0"`
}

// CalculationSettings configures a calculation run. Immutable for its duration.
type CalculationSettings struct {
	PassCalcMode         PassCalcMode    `json:"pass_calc_mode" validate:"required,oneof=best avg"`
	OverallPassThreshold float64         `json:"overall_pass_threshold" validate:"gte=0,lte=100"`
	ExamWeight           float64         `json:"exam_weight" validate:"gte=0"`
	ExamScoreSource      ExamScoreSource `json:"exam_score_source" validate:"required,oneof=final raw"`
	FailOnAnyExam        bool            `json:"fail_on_any_exam"`
}

// DefaultCalculationSettings returns the settings used when none are persisted.
func DefaultCalculationSettings() CalculationSettings {
	return CalculationSettings{
		PassCalcMode:         PassCalcModeBest,
		OverallPassThreshold: 60,
		ExamWeight:           1,
		ExamScoreSource:      ExamScoreSourceFinal,
	}
}

// CalculationInput aggregates everything needed to score one student.
type CalculationInput struct {
	StudentID    string                `json:"student_id"`
	StudentCode  string                `json:"student_code"`
	StudentName  string                `json:"student_name"`
	ExamAttempts []ExamAttempt         `json:"exam_attempts"`
	ExtraScores  map[string]ExtraValue `json:"extra_scores"`
	ExtraFields  []ExtraField          `json:"extra_fields"`
	Settings     CalculationSettings   `json:"settings"`
}

// ExamDetail reports how a single attempt was scored.
type ExamDetail struct {
	ExamID        string  `json:"exam_id"`
	ExamTitle     string  `json:"exam_title"`
	Score         float64 `json:"score"`
	PassThreshold float64 `json:"pass_threshold"`
	Included      bool    `json:"included"`
	Passed        bool    `json:"passed"`
	Contribution  float64 `json:"contribution"`
}

// ExamComponent is the aggregated exam portion of a result.
type ExamComponent struct {
	Score       float64      `json:"score"`
	ExamsPassed int          `json:"exams_passed"`
	ExamsTotal  int          `json:"exams_total"`
	Details     []ExamDetail `json:"details"`
}

// ExtraDetail reports how a single extra field was normalized and weighted.
type ExtraDetail struct {
	Key             string         `json:"key"`
	Label           string         `json:"label"`
	Type            ExtraFieldType `json:"type"`
	MaxPoints       *float64       `json:"max_points"`
	RawValue        ExtraValue     `json:"raw_value"`
	Present         bool           `json:"present"`
	NormalizedScore float64        `json:"normalized_score"`
	Weight          float64        `json:"weight"`
	Contribution    float64        `json:"contribution"`
	Included        bool           `json:"included"`
	Passed          bool           `json:"passed"`
}

// ExtraComponent is the aggregated extra-field portion of a result.
type ExtraComponent struct {
	Score       float64       `json:"score"`
	TotalWeight float64       `json:"total_weight"`
	Details     []ExtraDetail `json:"details"`
}

// CalculationResult is the immutable outcome of one calculation.
type CalculationResult struct {
	Success         bool           `json:"success"`
	Error           string         `json:"error,omitempty"`
	ExamComponent   ExamComponent  `json:"exam_component"`
	ExtraComponent  ExtraComponent `json:"extra_component"`
	FinalScore      float64        `json:"final_score"`
	Passed          bool           `json:"passed"`
	PassThreshold   float64        `json:"pass_threshold"`
	FailedDueToExam bool           `json:"failed_due_to_exam"`
}

// FailedResult builds a zeroed result carrying the provided error code.
func FailedResult(code string, threshold float64) CalculationResult {
	return CalculationResult{
		Success:        false,
		Error:          code,
		ExamComponent:  ExamComponent{Details: []ExamDetail{}},
		ExtraComponent: ExtraComponent{Details: []ExtraDetail{}},
		PassThreshold:  threshold,
	}
}

// StudentSummary is the pre-joined per-student record read in batches.
// DecodeError is set when the stored record could not be decoded; such a
// summary must not be scored.
type StudentSummary struct {
	StudentID    string                `json:"student_id"`
	Code         string                `json:"code"`
	Name         string                `json:"name"`
	ExamAttempts []ExamAttempt         `json:"exam_attempts"`
	ExtraScores  map[string]ExtraValue `json:"extra_scores"`
	DecodeError  string                `json:"-"`
}
