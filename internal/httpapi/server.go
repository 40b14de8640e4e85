// Package httpapi exposes the chat and pipeline surfaces over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/chat"
	"github.com/opencouncil/docfind/internal/pipeline"
	"github.com/opencouncil/docfind/internal/session"
)

// ChatService answers one conversational turn.
type ChatService interface {
	Ask(ctx context.Context, req chat.AskRequest) (*chat.AskResponse, error)
}

// SessionStore is the session surface exposed over HTTP.
type SessionStore interface {
	History(ctx context.Context, sessionID string, limit int) ([]session.Message, error)
	Clear(ctx context.Context, sessionID string) error
	Info(ctx context.Context, sessionID string) (session.Info, error)
}

// Jobs submits and inspects document pipeline jobs.
type Jobs interface {
	SubmitReprocess(ctx context.Context, documentID uuid.UUID, sourcePath string, stage pipeline.Stage) (string, error)
	Status(ctx context.Context, jobID string) (pipeline.JobStatus, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the docfind HTTP API.
type Server struct {
	echo     *echo.Echo
	chat     ChatService
	sessions SessionStore
	jobs     Jobs
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server. jobs may be nil when the process runs
// without a pipeline connection; the pipeline endpoints then return 503.
func NewServer(chatSvc ChatService, sessions SessionStore, jobs Jobs, cfg Config, logger *zap.Logger) (*Server, error) {
	if chatSvc == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8090
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

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		chat:     chatSvc,
		sessions: sessions,
		jobs:     jobs,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.GET("/sessions/:id/history", s.handleSessionHistory)
	v1.GET("/sessions/:id", s.handleSessionInfo)
	v1.DELETE("/sessions/:id", s.handleSessionClear)
	v1.POST("/documents/:id/reprocess", s.handleReprocess)
	v1.GET("/jobs/:id", s.handleJobStatus)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// internalError logs the underlying failure under an opaque reference id
// and returns only that reference to the client.
func (s *Server) internalError(c echo.Context, what string, err error) error {
	ref := uuid.NewString()
	s.logger.Error(what,
		zap.String("error_ref", ref),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError,
		fmt.Sprintf("internal error (reference %s)", ref))
}

// ErrorResponse documents echo's error body shape.
type ErrorResponse struct {
	Message string `json:"message"`
}

var errJobsDisabled = errors.New("pipeline jobs are not configured")

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
