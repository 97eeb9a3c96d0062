package scoring

import (
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// CalculateFinalScore combines exam attempts and normalized extra fields into a
// single pass/fail outcome. It performs no I/O and never panics: every failure
// is reported through Success=false and a stable error code.
func CalculateFinalScore(input models.CalculationInput) (result models.CalculationResult) {
	settings := input.Settings
	defer func() {
		if r := recover(); r != nil {
			result = models.FailedResult(models.CalcErrorCalculation, settings.OverallPassThreshold)
		}
	}()

	if !validSettings(settings, input.ExtraFields) {
		return models.FailedResult(models.CalcErrorInvalidSettings, settings.OverallPassThreshold)
	}
	if !validAttempts(input.ExamAttempts) {
		return models.FailedResult(models.CalcErrorInvalidInput, settings.OverallPassThreshold)
	}

	exam, anyExamFailed := calculateExamComponent(input.ExamAttempts, settings)
	extra := calculateExtraComponent(input.ExtraFields, input.ExtraScores, settings.OverallPassThreshold)

	finalScore := exam.Score
	if extra.TotalWeight > 0 {
		finalScore = round2((exam.Score*settings.ExamWeight + extra.Score*extra.TotalWeight) / (settings.ExamWeight + extra.TotalWeight))
	}
	finalScore = clamp(finalScore)

	failedDueToExam := settings.FailOnAnyExam && anyExamFailed
	return models.CalculationResult{
		Success:         true,
		ExamComponent:   exam,
		ExtraComponent:  extra,
		FinalScore:      finalScore,
		Passed:          finalScore >= settings.OverallPassThreshold && !failedDueToExam,
		PassThreshold:   settings.OverallPassThreshold,
		FailedDueToExam: failedDueToExam,
	}
}

// ResolveExamScore applies the final/raw fallback rule and rounds to two decimals.
func ResolveExamScore(attempt models.ExamAttempt, source models.ExamScoreSource) float64 {
	score := attempt.ScorePercentage
	if source != models.ExamScoreSourceRaw && attempt.FinalScorePercentage != nil {
		score = *attempt.FinalScorePercentage
	}
	return clamp(round2(score))
}

func calculateExamComponent(attempts []models.ExamAttempt, settings models.CalculationSettings) (models.ExamComponent, bool) {
	component := models.ExamComponent{Details: make([]models.ExamDetail, 0, len(attempts))}
	anyFailed := false
	best := -1
	sum := 0.0

	for _, attempt := range attempts {
		score := ResolveExamScore(attempt, settings.ExamScoreSource)
		threshold := settings.OverallPassThreshold
		if attempt.PassThreshold != nil {
			threshold = *attempt.PassThreshold
		}
		detail := models.ExamDetail{
			ExamID:        attempt.ExamID,
			ExamTitle:     attempt.ExamTitle,
			Score:         score,
			PassThreshold: threshold,
			Included:      attempt.IncludeInPass,
			Passed:        score >= threshold,
		}
		component.Details = append(component.Details, detail)
		if !attempt.IncludeInPass {
			continue
		}
		component.ExamsTotal++
		if detail.Passed {
			component.ExamsPassed++
		} else {
			anyFailed = true
		}
		sum += score
		idx := len(component.Details) - 1
		if best < 0 || score > component.Details[best].Score {
			best = idx
		}
	}

	if component.ExamsTotal == 0 {
		return component, false
	}

	switch settings.PassCalcMode {
	case models.PassCalcModeAvg:
		component.Score = round2(sum / float64(component.ExamsTotal))
		for i := range component.Details {
			if component.Details[i].Included {
				component.Details[i].Contribution = round2(component.Details[i].Score / float64(component.ExamsTotal))
			}
		}
	default:
		component.Score = component.Details[best].Score
		component.Details[best].Contribution = component.Details[best].Score
	}
	return component, anyFailed
}

func calculateExtraComponent(fields []models.ExtraField, scores map[string]models.ExtraValue, threshold float64) models.ExtraComponent {
	component := models.ExtraComponent{Details: make([]models.ExtraDetail, 0, len(fields))}
	weightedSum := 0.0

	for _, field := range fields {
		value := scores[field.Key]
		normalized, present := NormalizeExtraValue(field, value)
		detail := models.ExtraDetail{
			Key:             field.Key,
			Label:           field.Label,
			Type:            field.Type,
			MaxPoints:       field.MaxPoints,
			RawValue:        value,
			Present:         present,
			NormalizedScore: normalized,
			Included:        field.IncludeInPass,
			Passed:          normalized >= threshold,
		}
		if field.IncludeInPass && field.PassWeight > 0 {
			detail.Weight = field.PassWeight
			contribution := normalized * field.PassWeight
			detail.Contribution = round2(contribution)
			weightedSum += contribution
			component.TotalWeight += field.PassWeight
		}
		component.Details = append(component.Details, detail)
	}

	if component.TotalWeight > 0 {
		component.Score = clamp(round2(weightedSum / component.TotalWeight))
	}
	return component
}

// ValidSettings reports whether settings would be accepted by CalculateFinalScore.
func ValidSettings(settings models.CalculationSettings) bool {
	return validSettings(settings, nil)
}

func validSettings(settings models.CalculationSettings, fields []models.ExtraField) bool {
	if err := validate.Struct(settings); err != nil {
		return false
	}
	if !finite(settings.OverallPassThreshold) || !finite(settings.ExamWeight) {
		return false
	}
	for i := range fields {
		if err := validate.Struct(fields[i]); err != nil {
			return false
		}
		if !finite(fields[i].PassWeight) {
			return false
		}
		if maxPoints := fields[i].MaxPoints; maxPoints != nil && !(*maxPoints > 0 && finite(*maxPoints)) {
			return false
		}
	}
	return true
}

func validAttempts(attempts []models.ExamAttempt) bool {
	for _, attempt := range attempts {
		if !finite(attempt.ScorePercentage) {
			return false
		}
		if attempt.FinalScorePercentage != nil && !finite(*attempt.FinalScorePercentage) {
			return false
		}
		if attempt.PassThreshold != nil && !finite(*attempt.PassThreshold) {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
