package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/pkg/response"
)

type performanceMonitor interface {
	Summary() models.PerformanceSummary
	Recent(n int) []models.OperationRecord
	Reset()
}

type metricsSnapshotter interface {
	Snapshot() models.MetricsSnapshot
}

// PerformanceHandler exposes the in-process performance monitor.
type PerformanceHandler struct {
	monitor performanceMonitor
	metrics metricsSnapshotter
}

// NewPerformanceHandler constructs a performance handler.
func NewPerformanceHandler(monitor performanceMonitor, metrics metricsSnapshotter) *PerformanceHandler {
	return &PerformanceHandler{monitor: monitor, metrics: metrics}
}

// Summary godoc
// @Summary Aggregate performance summary
// @Tags Performance
// @Produce json
// @Param recent query int false "Include the N most recent records"
// @Success 200 {object} response.Envelope
// @Router /performance [get]
func (h *PerformanceHandler) Summary(c *gin.Context) {
	data := gin.H{"summary": h.monitor.Summary()}
	if n, err := strconv.Atoi(c.Query("recent")); err == nil && n > 0 {
		data["recent"] = h.monitor.Recent(n)
	}
	if h.metrics != nil {
		data["metrics"] = h.metrics.Snapshot()
	}
	response.OK(c, data)
}

// Reset godoc
// @Summary Drop every retained performance record
// @Tags Performance
// @Success 204
// @Router /performance/reset [post]
func (h *PerformanceHandler) Reset(c *gin.Context) {
	h.monitor.Reset()
	response.NoContent(c)
}
