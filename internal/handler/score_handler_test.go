package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

type batchProcessorMock struct {
	codes   []string
	results map[string]models.CalculationResult
	status  service.CacheStatus
	err     error
}

func (m *batchProcessorMock) ProcessStudents(_ context.Context, codes []string, _ service.ScoreDataSource) map[string]models.CalculationResult {
	m.codes = codes
	return m.results
}

func (m *batchProcessorMock) CalculateStudent(_ context.Context, code string, _ service.ScoreDataSource) (models.CalculationResult, service.CacheStatus, error) {
	if m.err != nil {
		return models.CalculationResult{}, service.CacheMiss, m.err
	}
	return m.results[code], m.status, nil
}

func newScoreRouter(batch *batchProcessorMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Scores: NewScoreHandler(service.NewScoreService(nil, nil, nil), batch, nil),
	})
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data json.RawMessage        `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if dest != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dest))
	}
	return envelope.Meta
}

func TestScoreHandlerCalculate(t *testing.T) {
	r := newScoreRouter(&batchProcessorMock{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/scores/calculate", `{
		"exam_attempts": [{"exam_id": "e1", "score_percentage": 64, "include_in_pass": true}],
		"extra_scores": {"project": "80"},
		"extra_fields": [{"key": "project", "label": "Project", "type": "text", "include_in_pass": true, "pass_weight": 1}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	var result models.CalculationResult
	decodeData(t, w, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 72.0, result.FinalScore)
	assert.True(t, result.Passed)
}

func TestScoreHandlerCalculateInvalidBody(t *testing.T) {
	r := newScoreRouter(&batchProcessorMock{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/scores/calculate", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreHandlerCalculateLegacy(t *testing.T) {
	r := newScoreRouter(&batchProcessorMock{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/scores/calculate/legacy", dto.LegacyRecord{
		Code:         "S1",
		StudentName:  "Budi",
		ExamAttempts: []dto.LegacyExamAttempt{{ExamID: "e1", ScorePercentage: 75, IncludeInPass: true}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.LegacyResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Budi", resp.StudentName)
	assert.True(t, resp.PassSummary.Passed)
}

func TestScoreHandlerBatch(t *testing.T) {
	batch := &batchProcessorMock{results: map[string]models.CalculationResult{
		"S1": {Success: true, FinalScore: 80, Passed: true},
		"S2": models.FailedResult(models.CalcErrorStudentNotFound, 60),
	}}
	r := newScoreRouter(batch)

	w := doJSON(t, r, http.MethodPost, "/api/v1/scores/batch", dto.BatchRequest{Codes: []string{"S1", "S2"}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.BatchResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, []string{"S1", "S2"}, batch.codes)

	w = doJSON(t, r, http.MethodPost, "/api/v1/scores/batch?format=legacy", dto.BatchRequest{Codes: []string{"S1", "S2"}})
	require.Equal(t, http.StatusOK, w.Code)
	var legacy dto.LegacyBatchResponse
	decodeData(t, w, &legacy)
	assert.Equal(t, "S1", legacy.Results["S1"].Code)
	assert.Equal(t, models.CalcErrorStudentNotFound, legacy.Results["S2"].Calculation.Error)

	w = doJSON(t, r, http.MethodPost, "/api/v1/scores/batch", dto.BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreHandlerStudent(t *testing.T) {
	batch := &batchProcessorMock{
		results: map[string]models.CalculationResult{"S1": {Success: true, FinalScore: 91}},
		status:  service.CacheFresh,
	}
	r := newScoreRouter(batch)

	w := doJSON(t, r, http.MethodGet, "/api/v1/scores/students/S1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result models.CalculationResult
	meta := decodeData(t, w, &result)
	assert.Equal(t, 91.0, result.FinalScore)
	assert.Equal(t, true, meta["cache_hit"])

	batch.err = appErrors.Clone(appErrors.ErrNotFound, "student not found")
	w = doJSON(t, r, http.MethodGet, "/api/v1/scores/students/S9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScoreHandlerBatchReport(t *testing.T) {
	batch := &batchProcessorMock{results: map[string]models.CalculationResult{
		"S1": {Success: true, FinalScore: 80, Passed: true, PassThreshold: 60},
	}}
	r := newScoreRouter(batch)

	w := doJSON(t, r, http.MethodPost, "/api/v1/scores/batch?format=csv", dto.BatchRequest{Codes: []string{"S1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="scores.csv"`)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("code,success,")))

	w = doJSON(t, r, http.MethodPost, "/api/v1/scores/batch?format=xlsx", dto.BatchRequest{Codes: []string{"S1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
