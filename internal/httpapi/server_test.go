package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/chat"
	"github.com/opencouncil/docfind/internal/pipeline"
	"github.com/opencouncil/docfind/internal/session"
)

type stubChat struct {
	resp *chat.AskResponse
	err  error
	last chat.AskRequest
}

func (s *stubChat) Ask(_ context.Context, req chat.AskRequest) (*chat.AskResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubSessions struct {
	msgs    []session.Message
	info    session.Info
	cleared []string
	err     error
}

func (s *stubSessions) History(_ context.Context, _ string, _ int) ([]session.Message, error) {
	return s.msgs, s.err
}

func (s *stubSessions) Clear(_ context.Context, sessionID string) error {
	s.cleared = append(s.cleared, sessionID)
	return s.err
}

func (s *stubSessions) Info(_ context.Context, _ string) (session.Info, error) {
	return s.info, s.err
}

type stubJobs struct {
	jobID     string
	status    pipeline.JobStatus
	submitErr error
	statusErr error
	lastStage pipeline.Stage
}

func (s *stubJobs) SubmitReprocess(_ context.Context, _ uuid.UUID, _ string, stage pipeline.Stage) (string, error) {
	s.lastStage = stage
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.jobID, nil
}

func (s *stubJobs) Status(_ context.Context, _ string) (pipeline.JobStatus, error) {
	if s.statusErr != nil {
		return pipeline.JobStatus{}, s.statusErr
	}
	return s.status, nil
}

func setupTestServer(t *testing.T, chatSvc ChatService, sessions SessionStore, jobs Jobs) *Server {
	t.Helper()
	server, err := NewServer(chatSvc, sessions, jobs, Config{}, zap.NewNop())
	require.NoError(t, err)
	return server
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("requires chat service", func(t *testing.T) {
		_, err := NewServer(nil, &stubSessions{}, nil, Config{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(&stubChat{}, &stubSessions{}, nil, Config{}, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, nil)
		assert.Equal(t, 8090, server.config.Port)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, &stubChat{}, &stubSessions{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleChat(t *testing.T) {
	t.Run("answers a turn", func(t *testing.T) {
		chatSvc := &stubChat{resp: &chat.AskResponse{
			Answer:         "2024년 3월에 의결되었습니다.",
			RewrittenQuery: "예산안은 언제 의결됐어?",
			Sources:        []chat.Source{{DocumentID: uuid.New(), Score: 0.9123}},
		}}
		server := setupTestServer(t, chatSvc, &stubSessions{}, nil)

		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{
			SessionID:   "s-1",
			Query:       "그거 언제야?",
			AccessLevel: 4,
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "s-1", resp.SessionID)
		assert.Equal(t, "2024년 3월에 의결되었습니다.", resp.Answer)
		assert.Equal(t, "예산안은 언제 의결됐어?", resp.RewrittenQuery)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, 4, chatSvc.last.AccessLevel)
	})

	t.Run("generates session id when absent", func(t *testing.T) {
		chatSvc := &stubChat{resp: &chat.AskResponse{Answer: "답변"}}
		server := setupTestServer(t, chatSvc, &stubSessions{}, nil)

		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{Query: "질문", AccessLevel: 3})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp.SessionID)
		assert.NoError(t, err)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, nil)
		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{SessionID: "s", AccessLevel: 3})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps invalid access level to 400", func(t *testing.T) {
		chatSvc := &stubChat{err: chat.ErrInvalidAccessLevel}
		server := setupTestServer(t, chatSvc, &stubSessions{}, nil)
		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{SessionID: "s", Query: "질문", AccessLevel: 9})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps outages to 503", func(t *testing.T) {
		chatSvc := &stubChat{err: chat.ErrRetrievalUnavailable}
		server := setupTestServer(t, chatSvc, &stubSessions{}, nil)
		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{SessionID: "s", Query: "질문", AccessLevel: 3})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("hides internal errors behind a reference", func(t *testing.T) {
		chatSvc := &stubChat{err: errors.New("pq: relation chunks does not exist")}
		server := setupTestServer(t, chatSvc, &stubSessions{}, nil)
		rec := postJSON(t, server, "/api/v1/chat", ChatRequest{SessionID: "s", Query: "질문", AccessLevel: 3})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
		assert.Contains(t, rec.Body.String(), "reference")
	})
}

func TestSessionEndpoints(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("history", func(t *testing.T) {
		sessions := &stubSessions{msgs: []session.Message{
			{Role: session.RoleUser, Text: "질문", Timestamp: now},
			{Role: session.RoleAssistant, Text: "답변", Timestamp: now},
		}}
		server := setupTestServer(t, &stubChat{}, sessions, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1/history", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "s-1", resp.SessionID)
		require.Len(t, resp.Messages, 2)
		assert.Equal(t, session.RoleUser, resp.Messages[0].Role)
	})

	t.Run("info", func(t *testing.T) {
		sessions := &stubSessions{info: session.Info{
			Exists:       true,
			MessageCount: 6,
			TTLRemaining: 30 * time.Minute,
		}}
		server := setupTestServer(t, &stubChat{}, sessions, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SessionInfoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Exists)
		assert.Equal(t, 6, resp.MessageCount)
		assert.Equal(t, 1800, resp.TTLSeconds)
	})

	t.Run("clear", func(t *testing.T) {
		sessions := &stubSessions{}
		server := setupTestServer(t, &stubChat{}, sessions, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"s-1"}, sessions.cleared)
	})
}

func TestPipelineEndpoints(t *testing.T) {
	docID := uuid.New()

	t.Run("reprocess submits a job", func(t *testing.T) {
		jobs := &stubJobs{jobID: "docfind-pipeline-" + docID.String()}
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, jobs)

		rec := postJSON(t, server, "/api/v1/documents/"+docID.String()+"/reprocess", ReprocessRequest{
			SourcePath: "2024/minutes.txt",
			StartStage: "segment",
		})

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, pipeline.StageSegment, jobs.lastStage)

		var resp ReprocessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, jobs.jobID, resp.JobID)
	})

	t.Run("reprocess from embed needs no source path", func(t *testing.T) {
		jobs := &stubJobs{jobID: "j-1"}
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, jobs)

		rec := postJSON(t, server, "/api/v1/documents/"+docID.String()+"/reprocess", ReprocessRequest{
			StartStage: "embed",
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("rejects bad document id", func(t *testing.T) {
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, &stubJobs{})
		rec := postJSON(t, server, "/api/v1/documents/not-a-uuid/reprocess", ReprocessRequest{
			SourcePath: "2024/minutes.txt",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects bad start stage", func(t *testing.T) {
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, &stubJobs{})
		rec := postJSON(t, server, "/api/v1/documents/"+docID.String()+"/reprocess", ReprocessRequest{
			SourcePath: "2024/minutes.txt",
			StartStage: "rewind",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("job status", func(t *testing.T) {
		jobs := &stubJobs{status: pipeline.JobStatus{
			State:   pipeline.JobInProgress,
			Stage:   pipeline.StageEmbed,
			Percent: 70,
		}}
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, jobs)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j-1", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp pipeline.JobStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, pipeline.JobInProgress, resp.State)
		assert.Equal(t, 70, resp.Percent)
	})

	t.Run("unknown job maps to 404", func(t *testing.T) {
		jobs := &stubJobs{statusErr: ErrJobNotFound}
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, jobs)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("pipeline disabled maps to 503", func(t *testing.T) {
		server := setupTestServer(t, &stubChat{}, &stubSessions{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j-1", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
