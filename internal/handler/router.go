package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/middleware"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	"github.com/noah-isme/sma-adp-scoring/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-scoring/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-scoring/pkg/middleware/requestid"
)

// RouterConfig carries every handler mounted by NewRouter.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService

	Scores      *ScoreHandler
	Sync        *SyncHandler
	Cache       *CacheHandler
	Performance *PerformanceHandler
	AccessCodes *AccessCodeHandler
	Settings    *SettingsHandler
	Observe     *MetricsHandler
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics, "/metrics", "/health"))

	if cfg.Observe != nil {
		r.GET("/health", cfg.Observe.Health)
		r.GET("/metrics", cfg.Observe.Prometheus)
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	if h := cfg.Scores; h != nil {
		scores := api.Group("/scores")
		scores.POST("/calculate", h.Calculate)
		scores.POST("/calculate/legacy", h.CalculateLegacy)
		scores.POST("/batch", h.Batch)
		scores.GET("/students/:code", h.Student)
	}
	if h := cfg.Sync; h != nil {
		sync := api.Group("/sync")
		sync.GET("/timestamps", h.Timestamps)
		sync.POST("/students/:id", h.Student)
		sync.POST("/:category", h.Run)
	}
	if h := cfg.Cache; h != nil {
		cache := api.Group("/cache")
		cache.POST("/invalidate", h.Invalidate)
		cache.DELETE("/tiers/:tier", h.EvictTier)
	}
	if h := cfg.Performance; h != nil {
		api.GET("/performance", h.Summary)
		api.POST("/performance/reset", h.Reset)
	}
	if h := cfg.AccessCodes; h != nil {
		codes := api.Group("/access-codes")
		codes.PUT("/:code", h.Store)
		codes.DELETE("/:code", h.Clear)
		codes.POST("/:code/validate", h.Validate)
	}
	if h := cfg.Settings; h != nil {
		settings := api.Group("/settings")
		settings.GET("/calculation", h.Get)
		settings.PUT("/calculation", h.Update)
	}
	return r
}
