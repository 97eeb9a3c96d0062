package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/response"
)

type accessCodeStore interface {
	StoreCode(ctx context.Context, studentCode, code string) error
	GetCode(ctx context.Context, studentCode string) (string, bool)
	ClearCode(ctx context.Context, studentCode string) error
	RecordValidation(ctx context.Context, studentCode string, ok bool) (bool, error)
	Failures(studentCode string) int
}

// AccessCodeHandler exposes the per-student exam access code store.
type AccessCodeHandler struct {
	store accessCodeStore
}

// NewAccessCodeHandler constructs an access code handler.
func NewAccessCodeHandler(store accessCodeStore) *AccessCodeHandler {
	return &AccessCodeHandler{store: store}
}

// Store godoc
// @Summary Store a student's access code
// @Tags AccessCodes
// @Accept json
// @Param code path string true "Student code"
// @Param payload body dto.StoreAccessCodeRequest true "Access code"
// @Success 204
// @Router /access-codes/{code} [put]
func (h *AccessCodeHandler) Store(c *gin.Context) {
	var req dto.StoreAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access code"))
		return
	}
	if err := h.store.StoreCode(c.Request.Context(), c.Param("code"), req.Code); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrCacheUnavailable.Code, appErrors.ErrCacheUnavailable.Status, "access code not stored"))
		return
	}
	response.NoContent(c)
}

// Validate godoc
// @Summary Validate a submitted access code
// @Tags AccessCodes
// @Accept json
// @Produce json
// @Param code path string true "Student code"
// @Param payload body dto.ValidateAccessCodeRequest true "Submitted code"
// @Success 200 {object} response.Envelope
// @Router /access-codes/{code}/validate [post]
func (h *AccessCodeHandler) Validate(c *gin.Context) {
	var req dto.ValidateAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access code"))
		return
	}
	studentCode := c.Param("code")
	stored, found := h.store.GetCode(c.Request.Context(), studentCode)
	if !found {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no access code stored"))
		return
	}
	valid := subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) == 1
	cleared, err := h.store.RecordValidation(c.Request.Context(), studentCode, valid)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrCacheUnavailable.Code, appErrors.ErrCacheUnavailable.Status, "access code not cleared"))
		return
	}
	response.OK(c, dto.ValidateAccessCodeResponse{Valid: valid, Cleared: cleared, Failures: h.store.Failures(studentCode)})
}

// Clear godoc
// @Summary Clear a student's access code
// @Tags AccessCodes
// @Param code path string true "Student code"
// @Success 204
// @Router /access-codes/{code} [delete]
func (h *AccessCodeHandler) Clear(c *gin.Context) {
	if err := h.store.ClearCode(c.Request.Context(), c.Param("code")); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrCacheUnavailable.Code, appErrors.ErrCacheUnavailable.Status, "access code not cleared"))
		return
	}
	response.NoContent(c)
}
