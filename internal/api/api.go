// Package api provides the HTTP API server for Caseflow.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "caseflow/internal/api/v1"
	"caseflow/internal/audit"
	"caseflow/internal/auth"
	internalconfig "caseflow/internal/config"
	"caseflow/internal/db"
	"caseflow/internal/db/repositories"
	"caseflow/internal/logging"
	"caseflow/internal/services"
	"caseflow/internal/version"
)

type Server struct {
	cfg        *internalconfig.Config
	db         db.Database
	repos      *repositories.Repositories
	httpServer *http.Server
	sweeper    *services.OverdueSweeper
}

func New(cfg *internalconfig.Config, database db.Database) *Server {
	repos := repositories.New(database)
	sink := audit.NewRecorder(repos.AuditEvents)
	webhooks := services.NewWebhookService(repos)

	planService := services.NewPlanService(repos, sink).
		WithWebhooks(webhooks).
		WithDueSoonWindow(time.Duration(cfg.DueSoonWindowHours) * time.Hour)
	playbookService := services.NewPlaybookService(repos)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.GetBuildInfo())
	})

	authMiddleware := auth.NewAuthMiddleware(repos, cfg.LocalMode)
	apiGroup := router.Group("/api/v1")
	apiGroup.Use(authMiddleware.Authenticate())

	handlers := v1.NewAPIHandlers(repos, planService, playbookService)
	handlers.RegisterRoutes(apiGroup)

	return &Server{
		cfg:   cfg,
		db:    database,
		repos: repos,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.APIPort),
			Handler: router,
		},
		sweeper: services.NewOverdueSweeper(repos, sink, webhooks, cfg.OverdueSweepCron),
	}
}

// Start runs the HTTP server and the overdue sweeper until the context is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start overdue sweeper: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("API server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.sweeper.Stop()
		return err
	case <-ctx.Done():
		s.sweeper.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
