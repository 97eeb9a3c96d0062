package dto

// LegacyExamAttempt is the snake_case attempt shape used by older clients.
type LegacyExamAttempt struct {
	ExamID               string   `json:"exam_id"`
	ExamTitle            string   `json:"exam_title"`
	ScorePercentage      float64  `json:"score_percentage"`
	FinalScorePercentage *float64 `json:"final_score_percentage"`
	IncludeInPass        bool     `json:"include_in_pass"`
	PassThreshold        *float64 `json:"pass_threshold"`
}

// LegacyExtraField is the older extra-field definition shape.
type LegacyExtraField struct {
	Key           string   `json:"key"`
	Label         string   `json:"label"`
	Type          string   `json:"type"`
	IncludeInPass bool     `json:"include_in_pass"`
	PassWeight    float64  `json:"pass_weight"`
	MaxPoints     *float64 `json:"max_points"`
}

// LegacySettings carries optional settings; missing values fall back to defaults.
type LegacySettings struct {
	PassCalcMode         *string  `json:"pass_calc_mode"`
	OverallPassThreshold *float64 `json:"overall_pass_threshold"`
	ExamWeight           *float64 `json:"exam_weight"`
	ExamScoreSource      *string  `json:"exam_score_source"`
	FailOnAnyExam        *bool    `json:"fail_on_any_exam"`
}

// LegacyRecord is the older per-student record consumed at the boundary.
type LegacyRecord struct {
	StudentID    string                 `json:"student_id"`
	Code         string                 `json:"code"`
	StudentName  string                 `json:"student_name"`
	ExamAttempts []LegacyExamAttempt    `json:"exam_attempts"`
	ExtraScores  map[string]interface{} `json:"extra_scores"`
	ExtraFields  []LegacyExtraField     `json:"extra_fields"`
	Settings     *LegacySettings        `json:"settings"`
}

// LegacyExamDetail mirrors one scored attempt in the legacy response.
type LegacyExamDetail struct {
	ExamID        string  `json:"exam_id"`
	ExamTitle     string  `json:"exam_title"`
	Score         float64 `json:"score"`
	PassThreshold float64 `json:"pass_threshold"`
	IncludeInPass bool    `json:"include_in_pass"`
	Passed        bool    `json:"passed"`
}

// LegacyExtraDetail mirrors one weighted extra field in the legacy response.
type LegacyExtraDetail struct {
	Key             string  `json:"key"`
	NormalizedScore float64 `json:"normalized_score"`
	PassWeight      float64 `json:"pass_weight"`
	WeightedScore   float64 `json:"weighted_score"`
	IncludeInPass   bool    `json:"include_in_pass"`
}

// LegacyCalculation is the calculation block of the legacy response.
type LegacyCalculation struct {
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	ExamScore       float64             `json:"exam_score"`
	ExtraScore      float64             `json:"extra_score"`
	FinalScore      float64             `json:"final_score"`
	Passed          bool                `json:"passed"`
	FailedDueToExam bool                `json:"failed_due_to_exam"`
	ExamDetails     []LegacyExamDetail  `json:"exam_details"`
	ExtraDetails    []LegacyExtraDetail `json:"extra_details"`
}

// LegacyExtra is a flattened extra value consumed by export/display code.
type LegacyExtra struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	Label     string      `json:"label"`
	MaxPoints *float64    `json:"max_points"`
	Type      string      `json:"type"`
}

// LegacyPassSummary is the summary block consumed by export/display code.
type LegacyPassSummary struct {
	OverallScore float64 `json:"overall_score"`
	Passed       bool    `json:"passed"`
	Threshold    float64 `json:"threshold"`
	ExamPassed   int     `json:"exam_passed"`
	ExamTotal    int     `json:"exam_total"`
}

// LegacyResponse is the response shape expected by existing consumers.
type LegacyResponse struct {
	Code        string            `json:"code"`
	StudentName string            `json:"student_name"`
	Calculation LegacyCalculation `json:"calculation"`
	Extras      []LegacyExtra     `json:"extras"`
	PassSummary LegacyPassSummary `json:"pass_summary"`
}
