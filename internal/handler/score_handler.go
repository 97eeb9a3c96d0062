package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/middleware"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/response"
)

type scoreCalculator interface {
	Calculate(input models.CalculationInput) models.CalculationResult
	CalculateLegacy(record dto.LegacyRecord) dto.LegacyResponse
}

type batchProcessor interface {
	ProcessStudents(ctx context.Context, codes []string, source service.ScoreDataSource) map[string]models.CalculationResult
	CalculateStudent(ctx context.Context, code string, source service.ScoreDataSource) (models.CalculationResult, service.CacheStatus, error)
}

// ScoreHandler exposes calculation endpoints.
type ScoreHandler struct {
	scores scoreCalculator
	batch  batchProcessor
	source service.ScoreDataSource
}

// NewScoreHandler constructs a score handler.
func NewScoreHandler(scores scoreCalculator, batch batchProcessor, source service.ScoreDataSource) *ScoreHandler {
	return &ScoreHandler{scores: scores, batch: batch, source: source}
}

// Calculate godoc
// @Summary Calculate a final score from a supplied input
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body dto.CalculateRequest true "Calculation input"
// @Success 200 {object} response.Envelope
// @Router /scores/calculate [post]
func (h *ScoreHandler) Calculate(c *gin.Context) {
	var req dto.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calculation payload"))
		return
	}
	response.OK(c, h.scores.Calculate(req.Input()))
}

// CalculateLegacy godoc
// @Summary Calculate a final score from a legacy record
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body dto.LegacyRecord true "Legacy record"
// @Success 200 {object} response.Envelope
// @Router /scores/calculate/legacy [post]
func (h *ScoreHandler) CalculateLegacy(c *gin.Context) {
	var req dto.LegacyRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid legacy record"))
		return
	}
	response.OK(c, h.scores.CalculateLegacy(req))
}

// Student godoc
// @Summary Calculate one student's score from stored data
// @Tags Scores
// @Produce json
// @Param code path string true "Student code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scores/students/{code} [get]
func (h *ScoreHandler) Student(c *gin.Context) {
	result, status, err := h.batch.CalculateStudent(c.Request.Context(), c.Param("code"), h.source)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, status.Hit())
	response.OK(c, result, middleware.ExtractMeta(c))
}

// Batch godoc
// @Summary Calculate scores for many students
// @Tags Scores
// @Accept json
// @Produce json
// @Param format query string false "legacy for the legacy response shape, csv or pdf for a report file"
// @Param payload body dto.BatchRequest true "Student codes"
// @Success 200 {object} response.Envelope
// @Router /scores/batch [post]
func (h *ScoreHandler) Batch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	results := h.batch.ProcessStudents(c.Request.Context(), req.Codes, h.source)

	switch format := c.Query("format"); format {
	case "", "json":
	case "legacy":
		legacy := make(map[string]dto.LegacyResponse, len(results))
		for code, result := range results {
			legacy[code] = scoring.ToLegacyFormat(result, code, "")
		}
		response.OK(c, dto.LegacyBatchResponse{Results: legacy, Processed: len(results)}, middleware.ExtractMeta(c))
		return
	default:
		body, renderer, err := service.RenderScoreReport(results, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="scores.%s"`, renderer.Extension()))
		c.Data(http.StatusOK, renderer.ContentType(), body)
		return
	}

	resp := dto.BatchResponse{Results: results, Processed: len(results)}
	for _, result := range results {
		if result.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	response.OK(c, resp, middleware.ExtractMeta(c))
}
