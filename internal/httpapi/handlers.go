package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/chat"
	"github.com/opencouncil/docfind/internal/pipeline"
)

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	SessionID   string `json:"session_id"`
	Query       string `json:"query"`
	AccessLevel int    `json:"access_level"`
	Year        int    `json:"year,omitempty"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	SessionID      string        `json:"session_id"`
	Answer         string        `json:"answer"`
	RewrittenQuery string        `json:"rewritten_query,omitempty"`
	Sources        []chat.Source `json:"sources"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := s.chat.Ask(c.Request().Context(), chat.AskRequest{
		SessionID:   req.SessionID,
		Query:       req.Query,
		AccessLevel: req.AccessLevel,
		Year:        req.Year,
	})
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyQuery), errors.Is(err, chat.ErrInvalidAccessLevel):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrEmbeddingUnavailable), errors.Is(err, chat.ErrRetrievalUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return s.internalError(c, "chat turn failed", err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		SessionID:      req.SessionID,
		Answer:         resp.Answer,
		RewrittenQuery: resp.RewrittenQuery,
		Sources:        resp.Sources,
	})
}

// HistoryMessage is one entry of a session history response.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the response body for GET /api/v1/sessions/:id/history.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

func (s *Server) handleSessionHistory(c echo.Context) error {
	sessionID := c.Param("id")

	msgs, err := s.sessions.History(c.Request().Context(), sessionID, 0)
	if err != nil {
		return s.internalError(c, "session history read failed", err)
	}

	out := make([]HistoryMessage, len(msgs))
	for i, m := range msgs {
		out[i] = HistoryMessage{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp}
	}
	return c.JSON(http.StatusOK, HistoryResponse{SessionID: sessionID, Messages: out})
}

// SessionInfoResponse is the response body for GET /api/v1/sessions/:id.
type SessionInfoResponse struct {
	SessionID    string `json:"session_id"`
	Exists       bool   `json:"exists"`
	MessageCount int    `json:"message_count"`
	TTLSeconds   int    `json:"ttl_seconds"`
}

func (s *Server) handleSessionInfo(c echo.Context) error {
	sessionID := c.Param("id")

	info, err := s.sessions.Info(c.Request().Context(), sessionID)
	if err != nil {
		return s.internalError(c, "session info read failed", err)
	}

	return c.JSON(http.StatusOK, SessionInfoResponse{
		SessionID:    sessionID,
		Exists:       info.Exists,
		MessageCount: info.MessageCount,
		TTLSeconds:   int(info.TTLRemaining.Seconds()),
	})
}

func (s *Server) handleSessionClear(c echo.Context) error {
	if err := s.sessions.Clear(c.Request().Context(), c.Param("id")); err != nil {
		return s.internalError(c, "session clear failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReprocessRequest is the request body for POST /api/v1/documents/:id/reprocess.
type ReprocessRequest struct {
	SourcePath string `json:"source_path"`
	// StartStage resumes a failed run part-way: extract, segment, or embed.
	StartStage string `json:"start_stage,omitempty"`
}

// ReprocessResponse is the response body for a submitted pipeline job.
type ReprocessResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleReprocess(c echo.Context) error {
	if s.jobs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, errJobsDisabled.Error())
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	var req ReprocessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	stage := pipeline.Stage(req.StartStage)
	switch stage {
	case "", pipeline.StageExtract, pipeline.StageSegment, pipeline.StageEmbed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_stage")
	}
	if stage != pipeline.StageEmbed && req.SourcePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_path is required")
	}

	jobID, err := s.jobs.SubmitReprocess(c.Request().Context(), documentID, req.SourcePath, stage)
	if err != nil {
		return s.internalError(c, "pipeline job submission failed", err)
	}

	return c.JSON(http.StatusAccepted, ReprocessResponse{JobID: jobID})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	if s.jobs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, errJobsDisabled.Error())
	}

	status, err := s.jobs.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return s.internalError(c, "job status lookup failed", err)
	}
	return c.JSON(http.StatusOK, status)
}
