package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	_ "github.com/noah-isme/sma-adp-scoring/api/swagger"
	"github.com/noah-isme/sma-adp-scoring/internal/handler"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
	"github.com/noah-isme/sma-adp-scoring/pkg/config"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, sync scheduler and student sync queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, port int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if port == 0 {
		port = cfg.Port
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	queue := service.NewStudentSyncQueue(a.sync, cfg.Sync, a.logger)
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Sync.SchedulerEnabled {
		service.NewSyncScheduler(a.sync, cfg.Sync.Interval, a.logger).Start(ctx)
	}

	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return a.db.PingContext(ctx) },
	}
	if a.redis != nil {
		checks["cache"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         a.logger,
		Metrics:        a.metrics,
		Scores:         handler.NewScoreHandler(a.scores, a.batch, a.source),
		Sync:           handler.NewSyncHandler(a.sync, queue),
		Cache:          handler.NewCacheHandler(a.invalidator, a.cache),
		Performance:    handler.NewPerformanceHandler(a.monitor, a.metrics),
		AccessCodes:    handler.NewAccessCodeHandler(a.accessCodes),
		Settings:       handler.NewSettingsHandler(a.settings),
		Observe:        handler.NewMetricsHandler(a.metrics, checks),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Sugar().Infow("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
