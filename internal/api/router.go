// Package api exposes the pattern engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/scanner"
	"github.com/rewired-gh/polypattern/internal/storage"
)

// Server serves ad-hoc searches over posted data and predictions over the
// stored corpus.
type Server struct {
	engine *gin.Engine
}

// NewServer builds the router. mode is a gin mode ("debug", "release" or
// "test"); empty keeps gin's current mode.
func NewServer(st *storage.Storage, sc *scanner.Scanner, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	h := NewHandler(st, sc)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	registerPatternRoutes(v1, h)

	return &Server{engine: router}
}

func registerPatternRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/patterns/search", h.Search)
	r.GET("/markets/:tokenId/prediction", h.Prediction)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP API stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	}
}
