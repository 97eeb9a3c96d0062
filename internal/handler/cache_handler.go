package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
	"github.com/noah-isme/sma-adp-scoring/pkg/response"
)

type cacheInvalidator interface {
	Handle(ctx context.Context, event service.InvalidationEvent) (int, error)
}

type tierEvictor interface {
	EvictTier(ctx context.Context, tier service.CacheTier) (int, error)
}

// CacheHandler exposes cache invalidation endpoints.
type CacheHandler struct {
	invalidator cacheInvalidator
	evictor     tierEvictor
}

// NewCacheHandler constructs a cache handler.
func NewCacheHandler(invalidator cacheInvalidator, evictor tierEvictor) *CacheHandler {
	return &CacheHandler{invalidator: invalidator, evictor: evictor}
}

// Invalidate godoc
// @Summary Invalidate cache entries for a mutation event
// @Tags Cache
// @Accept json
// @Produce json
// @Param payload body dto.InvalidateCacheRequest true "Mutation event"
// @Success 200 {object} response.Envelope
// @Router /cache/invalidate [post]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req dto.InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invalidation event"))
		return
	}
	removed, err := h.invalidator.Handle(c.Request.Context(), service.InvalidationEvent{
		Type:         req.Event,
		ExamID:       req.ExamID,
		StudentCodes: req.StudentCodes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.InvalidateCacheResponse{Event: req.Event, Removed: removed})
}

// EvictTier godoc
// @Summary Drop every entry of a cache tier
// @Tags Cache
// @Produce json
// @Param tier path string true "STATIC, CONFIG, SCORES, USER or LIVE"
// @Success 200 {object} response.Envelope
// @Router /cache/tiers/{tier} [delete]
func (h *CacheHandler) EvictTier(c *gin.Context) {
	tier := service.CacheTier(strings.ToUpper(c.Param("tier")))
	if !validTier(tier) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown cache tier"))
		return
	}
	removed, err := h.evictor.EvictTier(c.Request.Context(), tier)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrCacheUnavailable.Code, appErrors.ErrCacheUnavailable.Status, appErrors.ErrCacheUnavailable.Message))
		return
	}
	response.OK(c, gin.H{"tier": tier, "removed": removed})
}

func validTier(tier service.CacheTier) bool {
	switch tier {
	case service.TierStatic, service.TierConfig, service.TierScores, service.TierUser, service.TierLive:
		return true
	}
	return false
}
