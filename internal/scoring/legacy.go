package scoring

import (
	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// FromLegacyFormat maps an older snake_case record into a CalculationInput.
func FromLegacyFormat(raw dto.LegacyRecord) models.CalculationInput {
	attempts := make([]models.ExamAttempt, 0, len(raw.ExamAttempts))
	for _, a := range raw.ExamAttempts {
		attempts = append(attempts, models.ExamAttempt{
			ExamID:               a.ExamID,
			ExamTitle:            a.ExamTitle,
			ScorePercentage:      a.ScorePercentage,
			FinalScorePercentage: a.FinalScorePercentage,
			IncludeInPass:        a.IncludeInPass,
			PassThreshold:        a.PassThreshold,
		})
	}
	fields := make([]models.ExtraField, 0, len(raw.ExtraFields))
	for _, f := range raw.ExtraFields {
		fields = append(fields, models.ExtraField{
			Key:           f.Key,
			Label:         f.Label,
			Type:          legacyFieldType(f.Type),
			IncludeInPass: f.IncludeInPass,
			PassWeight:    f.PassWeight,
			MaxPoints:     f.MaxPoints,
		})
	}
	return models.CalculationInput{
		StudentID:    raw.StudentID,
		StudentCode:  raw.Code,
		StudentName:  raw.StudentName,
		ExamAttempts: attempts,
		ExtraScores:  models.ParseExtraScores(raw.ExtraScores),
		ExtraFields:  fields,
		Settings:     legacySettings(raw.Settings),
	}
}

// ToLegacyFormat maps a CalculationResult into the legacy response shape.
func ToLegacyFormat(result models.CalculationResult, code, name string) dto.LegacyResponse {
	examDetails := make([]dto.LegacyExamDetail, 0, len(result.ExamComponent.Details))
	for _, d := range result.ExamComponent.Details {
		examDetails = append(examDetails, dto.LegacyExamDetail{
			ExamID:        d.ExamID,
			ExamTitle:     d.ExamTitle,
			Score:         d.Score,
			PassThreshold: d.PassThreshold,
			IncludeInPass: d.Included,
			Passed:        d.Passed,
		})
	}
	extraDetails := make([]dto.LegacyExtraDetail, 0, len(result.ExtraComponent.Details))
	extras := make([]dto.LegacyExtra, 0, len(result.ExtraComponent.Details))
	for _, d := range result.ExtraComponent.Details {
		extraDetails = append(extraDetails, dto.LegacyExtraDetail{
			Key:             d.Key,
			NormalizedScore: d.NormalizedScore,
			PassWeight:      d.Weight,
			WeightedScore:   d.Contribution,
			IncludeInPass:   d.Included,
		})
		extras = append(extras, dto.LegacyExtra{
			Key:       d.Key,
			Value:     d.RawValue.Interface(),
			Label:     d.Label,
			MaxPoints: d.MaxPoints,
			Type:      string(d.Type),
		})
	}
	return dto.LegacyResponse{
		Code:        code,
		StudentName: name,
		Calculation: dto.LegacyCalculation{
			Success:         result.Success,
			Error:           result.Error,
			ExamScore:       result.ExamComponent.Score,
			ExtraScore:      result.ExtraComponent.Score,
			FinalScore:      result.FinalScore,
			Passed:          result.Passed,
			FailedDueToExam: result.FailedDueToExam,
			ExamDetails:     examDetails,
			ExtraDetails:    extraDetails,
		},
		Extras: extras,
		PassSummary: dto.LegacyPassSummary{
			OverallScore: result.FinalScore,
			Passed:       result.Passed,
			Threshold:    result.PassThreshold,
			ExamPassed:   result.ExamComponent.ExamsPassed,
			ExamTotal:    result.ExamComponent.ExamsTotal,
		},
	}
}

func legacySettings(raw *dto.LegacySettings) models.CalculationSettings {
	settings := models.DefaultCalculationSettings()
	if raw == nil {
		return settings
	}
	if raw.PassCalcMode != nil {
		settings.PassCalcMode = models.PassCalcMode(*raw.PassCalcMode)
	}
	if raw.OverallPassThreshold != nil {
		settings.OverallPassThreshold = *raw.OverallPassThreshold
	}
	if raw.ExamWeight != nil {
		settings.ExamWeight = *raw.ExamWeight
	}
	if raw.ExamScoreSource != nil {
		settings.ExamScoreSource = models.ExamScoreSource(*raw.ExamScoreSource)
	}
	if raw.FailOnAnyExam != nil {
		settings.FailOnAnyExam = *raw.FailOnAnyExam
	}
	return settings
}

func legacyFieldType(raw string) models.ExtraFieldType {
	switch raw {
	case "boolean", "bool", "checkbox":
		return models.ExtraFieldTypeBoolean
	case "text", "string":
		return models.ExtraFieldTypeText
	default:
		return models.ExtraFieldTypeNumber
	}
}
