// Package api serves the registry over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/importer"
	"github.com/skelly-dev/sigreg/internal/observability"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/search"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Options struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	MaxUploadBytes int64
}

type Server struct {
	reg      *registry.Registry
	importer *importer.Importer
	searcher *search.Searcher
	metrics  *observability.Metrics
	logger   *zap.Logger
	maxBytes int64
	engine   *gin.Engine
}

func New(reg *registry.Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}

	s := &Server{
		reg:      reg,
		importer: importer.New(reg, importer.WithLogger(logger)),
		searcher: search.NewSearcher(reg),
		metrics:  opts.Metrics,
		logger:   logger,
		maxBytes: maxBytes,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		engine.Use(s.metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	engine.GET("/healthz", s.health)

	api := engine.Group("/api")
	api.POST("/signatures", s.createSignature)
	api.GET("/signatures", s.listSignatures)
	api.POST("/import-solidity", s.importSolidity)
	api.POST("/import-abi", s.importABI)
	return engine
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			s.logger.Error("http request", fields...)
		case c.Writer.Status() >= 400:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Debug("http request", fields...)
		}
	}
}
