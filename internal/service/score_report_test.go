package service

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

func reportResults() map[string]models.CalculationResult {
	return map[string]models.CalculationResult{
		"S2": models.FailedResult(models.CalcErrorStudentNotFound, 60),
		"S1": {
			Success:        true,
			ExamComponent:  models.ExamComponent{Score: 80, ExamsPassed: 1, ExamsTotal: 1},
			ExtraComponent: models.ExtraComponent{Score: 90.5},
			FinalScore:     85.25,
			Passed:         true,
			PassThreshold:  60,
		},
	}
}

func TestScoreReportOrdersByCode(t *testing.T) {
	data := ScoreReport(reportResults())

	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"S1", "true", "", "80", "90.5", "85.25", "true", "60", "1", "1", "false"}, data.Rows[0])
	assert.Equal(t, "S2", data.Rows[1][0])
	assert.Equal(t, models.CalcErrorStudentNotFound, data.Rows[1][2])
}

func TestRenderScoreReport(t *testing.T) {
	body, renderer, err := RenderScoreReport(reportResults(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", renderer.ContentType())
	assert.True(t, bytes.HasPrefix(body, []byte("code,success,error,")))

	body, renderer, err = RenderScoreReport(reportResults(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", renderer.Extension())
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	_, _, err = RenderScoreReport(reportResults(), "xlsx")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
