// Package server provides the HTTP API for triaged.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/config"
	"github.com/sponteware/triaged/internal/store"
	"github.com/sponteware/triaged/internal/triage"
	"github.com/sponteware/triaged/internal/upstream"
)

// Server exposes the triage service over HTTP.
type Server struct {
	echo     *echo.Echo
	svc      *triage.Service
	store    store.Store
	upstream *upstream.Client
	cfg      *config.Config
	logger   *zap.Logger
}

// New creates the HTTP server and registers all routes.
func New(svc *triage.Service, st store.Store, up *upstream.Client, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("triage service is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if up == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		svc:      svc,
		store:    st,
		upstream: up,
		cfg:      cfg,
		logger:   logger,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/triage")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/ticket/:number", s.handleTriageTicket)
	api.GET("/ticket/:number", s.handleLookupTicket)
	api.POST("/feedback", s.handleFeedback)
	api.GET("/history", s.handleHistory)
	api.GET("/stats", s.handleStats)
	api.GET("/patterns", s.handlePatterns)
	api.GET("/knowledge-base", s.handleKnowledgeBase)
	api.GET("/config", s.handleConfig)
	api.GET("/health", s.handleHealth)
	api.GET("/upstream/status", s.handleUpstreamStatus)
	api.GET("/upstream/recent", s.handleUpstreamRecent)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
