// Package server is the HTTP transport boundary: it frames analysis output
// as JSON or Server-Sent Events and applies rate limiting before dispatch.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/detect"
	"github.com/ppiankov/paralogia/internal/model"
	"github.com/ppiankov/paralogia/internal/ratelimit"
)

// Server wires the analysis service, cache, and rate limiter behind HTTP
// routes.
type Server struct {
	cfg      model.ServerConfig
	engine   *gin.Engine
	detector *detect.Service
	cache    *cache.Service
	limiter  *ratelimit.Limiter
	log      *log.Logger
}

// New creates the HTTP server and registers routes.
func New(cfg model.ServerConfig, detector *detect.Service, cacheSvc *cache.Service, limiter *ratelimit.Limiter, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		detector: detector,
		cache:    cacheSvc,
		limiter:  limiter,
		log:      logger,
	}

	engine.POST("/api/analyze", s.handleAnalyze)
	engine.GET("/api/cache/stats", s.handleCacheStats)
	engine.GET("/healthz", s.handleHealth)

	return s
}

// Handler exposes the router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

// handleCacheStats reports cache statistics for operational visibility.
func (s *Server) handleCacheStats(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, s.cache.Stats(c.Request.Context()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
