package service

import (
	"sort"
	"strconv"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/export"
)

var scoreReportHeaders = []string{
	"code", "success", "error", "exam_score", "extra_score", "final_score",
	"passed", "threshold", "exams_passed", "exams_total", "failed_due_to_exam",
}

// ScoreReport flattens batch results into a dataset ordered by student code.
func ScoreReport(results map[string]models.CalculationResult) export.Dataset {
	codes := make([]string, 0, len(results))
	for code := range results {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		r := results[code]
		rows = append(rows, []string{
			code,
			strconv.FormatBool(r.Success),
			r.Error,
			formatScore(r.ExamComponent.Score),
			formatScore(r.ExtraComponent.Score),
			formatScore(r.FinalScore),
			strconv.FormatBool(r.Passed),
			formatScore(r.PassThreshold),
			strconv.Itoa(r.ExamComponent.ExamsPassed),
			strconv.Itoa(r.ExamComponent.ExamsTotal),
			strconv.FormatBool(r.FailedDueToExam),
		})
	}
	return export.Dataset{Title: "Student scores", Headers: scoreReportHeaders, Rows: rows}
}

// RenderScoreReport renders results in the named format (csv or pdf).
func RenderScoreReport(results map[string]models.CalculationResult, format string) ([]byte, export.Renderer, error) {
	parsed, ok := export.ParseFormat(format)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	renderer, err := export.NewRenderer(parsed)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported report format")
	}
	body, err := renderer.Render(ScoreReport(results))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render score report")
	}
	return body, renderer, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
