package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/response"
)

type syncRunner interface {
	SyncCategory(ctx context.Context, category models.SyncCategory) (models.SyncResult, error)
	SyncStudentExtraScores(ctx context.Context, studentID string) models.SyncResult
	GetSyncTimestamps(ctx context.Context) (models.SyncTimestamps, error)
	MaxAgeMinutes() int
}

type studentSyncEnqueuer interface {
	Enqueue(studentID string) (string, error)
}

// SyncHandler exposes extra-score sync endpoints.
type SyncHandler struct {
	sync  syncRunner
	queue studentSyncEnqueuer
}

// NewSyncHandler constructs a sync handler. queue may be nil, in which case
// async requests run inline.
func NewSyncHandler(sync syncRunner, queue studentSyncEnqueuer) *SyncHandler {
	return &SyncHandler{sync: sync, queue: queue}
}

// Run godoc
// @Summary Run an extra-score sync
// @Tags Sync
// @Produce json
// @Param category path string true "homework, quiz, attendance or all"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sync/{category} [post]
func (h *SyncHandler) Run(c *gin.Context) {
	result, err := h.sync.SyncCategory(c.Request.Context(), models.SyncCategory(c.Param("category")))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	response.JSON(c, status, result)
}

// Student godoc
// @Summary Sync one student's extra scores
// @Tags Sync
// @Produce json
// @Param id path string true "Student ID"
// @Param async query bool false "Queue the sync instead of running it inline"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /sync/students/{id} [post]
func (h *SyncHandler) Student(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student id is required"))
		return
	}
	if c.Query("async") == "true" && h.queue != nil {
		jobID, err := h.queue.Enqueue(studentID)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusServiceUnavailable, "student sync queue unavailable"))
			return
		}
		response.Accepted(c, dto.SyncJobResponse{JobID: jobID, StudentID: studentID, QueuedAt: time.Now().UTC()})
		return
	}

	result := h.sync.SyncStudentExtraScores(c.Request.Context(), studentID)
	status := http.StatusOK
	if !result.Success && result.UpdatedCount == 0 {
		status = http.StatusBadGateway
	}
	response.JSON(c, status, result)
}

// Timestamps godoc
// @Summary Last sync time per category
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/timestamps [get]
func (h *SyncHandler) Timestamps(c *gin.Context) {
	timestamps, err := h.sync.GetSyncTimestamps(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	maxAge := h.sync.MaxAgeMinutes()
	needed := make(map[string]bool, 4)
	categories := []models.SyncCategory{models.SyncCategoryHomework, models.SyncCategoryQuiz, models.SyncCategoryAttendance, models.SyncCategoryAll}
	for _, category := range categories {
		needed[string(category)] = service.IsSyncNeeded(timestamps.For(category), maxAge)
	}
	response.OK(c, dto.SyncTimestampsResponse{Timestamps: timestamps, SyncNeeded: needed, MaxAgeMinutes: maxAge})
}
