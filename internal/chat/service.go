package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/session"
	"github.com/opencouncil/docfind/internal/store"
	"github.com/opencouncil/docfind/internal/vectorindex"
)

var (
	// ErrEmptyQuery indicates a blank question.
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidAccessLevel indicates a requester level outside 1-4.
	ErrInvalidAccessLevel = errors.New("invalid access level")

	// ErrEmbeddingUnavailable is the sanitized failure for the embedding step.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRetrievalUnavailable is the sanitized failure for the search step.
	ErrRetrievalUnavailable = errors.New("search temporarily unavailable")
)

// historyWindow is how many stored messages feed rewriting and prompts.
const historyWindow = 10

// Embedder embeds the (possibly rewritten) query.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the vector index gateway surface the orchestrator needs.
type Searcher interface {
	Search(ctx context.Context, q vectorindex.Query) ([]vectorindex.SearchResult, error)
}

// Generator produces the final answer; it degrades internally and never fails.
type Generator interface {
	Answer(ctx context.Context, req generation.AnswerRequest) string
}

// QueryRewriter makes follow-up questions self-contained.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query, formattedHistory string) string
}

// HistoryStore is the session store surface the orchestrator needs.
type HistoryStore interface {
	History(ctx context.Context, sessionID string, limit int) ([]session.Message, error)
	AppendExchange(ctx context.Context, sessionID, question, answer string) error
	FormatForPrompt(msgs []session.Message) string
}

// Auditor persists the long-term audit record.
type Auditor interface {
	InsertChatAudit(ctx context.Context, audit *store.ChatAudit) error
}

// Config holds orchestrator tuning.
type Config struct {
	// TopK is how many chunks to retrieve. Zero means 5.
	TopK int

	// SemanticWeight is passed through to hybrid search. Zero means the
	// gateway default.
	SemanticWeight float64

	// AuditTimeout bounds the fire-and-forget audit write.
	AuditTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.AuditTimeout <= 0 {
		c.AuditTimeout = 10 * time.Second
	}
}

// AskRequest is one incoming question.
type AskRequest struct {
	SessionID   string
	Query       string
	AccessLevel int
	Year        int
}

// Source is one deduplicated reference shown with the answer.
type Source struct {
	DocumentID  uuid.UUID          `json:"document_id"`
	SourceRef   string             `json:"source_ref"`
	Category    store.Category     `json:"category"`
	MeetingType *store.MeetingType `json:"meeting_type,omitempty"`
	Year        int                `json:"year,omitempty"`
	Department  string             `json:"department,omitempty"`
	Score       float64            `json:"score"`
}

// AskResponse is the completed turn.
type AskResponse struct {
	Answer         string   `json:"answer"`
	RewrittenQuery string   `json:"rewritten_query,omitempty"`
	Sources        []Source `json:"sources"`
}

// Service sequences one conversational turn.
type Service struct {
	embedder Embedder
	searcher Searcher
	gen      Generator
	rewriter QueryRewriter
	sessions HistoryStore
	auditor  Auditor
	cfg      Config
	logger   *zap.Logger

	audits sync.WaitGroup
}

// NewService wires the orchestrator. All collaborators are required except
// the auditor, which may be nil to disable audit persistence.
func NewService(embedder Embedder, searcher Searcher, gen Generator, rw QueryRewriter, sessions HistoryStore, auditor Auditor, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		searcher: searcher,
		gen:      gen,
		rewriter: rw,
		sessions: sessions,
		auditor:  auditor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Ask runs one full turn. Rewriting and history are best-effort; embedding
// and retrieval failures surface as sanitized errors.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.AccessLevel < store.AccessSensitive || req.AccessLevel > store.AccessPublic {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccessLevel, req.AccessLevel)
	}

	// History load is best-effort: a session store outage degrades the
	// turn to single-shot rather than failing it.
	msgs, err := s.sessions.History(ctx, req.SessionID, historyWindow)
	if err != nil {
		s.logger.Warn("history load failed, continuing without context",
			zap.String("session_id", req.SessionID), zap.Error(err))
		msgs = nil
	}
	formatted := s.sessions.FormatForPrompt(msgs)

	searchQuery := s.rewriter.Rewrite(ctx, req.Query, formatted)

	vector, err := s.embedder.EmbedQuery(ctx, searchQuery)
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		return nil, ErrEmbeddingUnavailable
	}

	results, err := s.searcher.Search(ctx, vectorindex.Query{
		Vector:               vector,
		Limit:                s.cfg.TopK,
		RequesterAccessLevel: req.AccessLevel,
		SemanticWeight:       s.cfg.SemanticWeight,
		Year:                 req.Year,
	})
	if err != nil {
		if errors.Is(err, vectorindex.ErrInvalidAccessLevel) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidAccessLevel, req.AccessLevel)
		}
		s.logger.Error("retrieval failed", zap.Error(err))
		return nil, ErrRetrievalUnavailable
	}

	history := formatted
	if history == session.EmptyHistory {
		history = ""
	}
	answer := s.gen.Answer(ctx, generation.AnswerRequest{
		Query:   req.Query,
		Context: contextStrings(results),
		History: history,
	})

	// The original question goes into history, not the rewritten form.
	if err := s.sessions.AppendExchange(ctx, req.SessionID, req.Query, answer); err != nil {
		s.logger.Warn("history append failed",
			zap.String("session_id", req.SessionID), zap.Error(err))
	}

	s.auditAsync(req.SessionID, req.Query, answer, results)

	resp := &AskResponse{
		Answer:  answer,
		Sources: buildSources(results),
	}
	if searchQuery != req.Query {
		resp.RewrittenQuery = searchQuery
	}
	return resp, nil
}

// auditAsync persists the audit record off the response path. Failures are
// logged and never surface to the caller.
func (s *Service) auditAsync(sessionID, question, answer string, results []vectorindex.SearchResult) {
	if s.auditor == nil {
		return
	}

	chunkIDs := make([]uuid.UUID, len(results))
	for i, r := range results {
		chunkIDs[i] = r.ChunkID
	}

	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AuditTimeout)
		defer cancel()

		err := s.auditor.InsertChatAudit(ctx, &store.ChatAudit{
			SessionID:      sessionID,
			Question:       question,
			Answer:         answer,
			SourceChunkIDs: chunkIDs,
		})
		if err != nil {
			s.logger.Error("audit persistence failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight audit writes finish. Called on shutdown.
func (s *Service) Wait() {
	s.audits.Wait()
}

// contextStrings prefers each result's parent content over the child's own
// text for a richer generation context.
func contextStrings(results []vectorindex.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ContextContent()
	}
	return out
}

// buildSources deduplicates results by document id preserving first-seen
// order, rounding scores to 4 decimal places for display.
func buildSources(results []vectorindex.SearchResult) []Source {
	seen := make(map[uuid.UUID]struct{}, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Document.ID]; ok {
			continue
		}
		seen[r.Document.ID] = struct{}{}
		sources = append(sources, Source{
			DocumentID:  r.Document.ID,
			SourceRef:   r.Document.SourceRef,
			Category:    r.Document.Category,
			MeetingType: r.Document.MeetingType,
			Year:        r.Document.Year,
			Department:  r.Document.Department,
			Score:       math.Round(r.FinalScore*10000) / 10000,
		})
	}
	return sources
}
