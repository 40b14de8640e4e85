package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/session"
	"github.com/opencouncil/docfind/internal/store"
	"github.com/opencouncil/docfind/internal/vectorindex"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeSearcher struct {
	results []vectorindex.SearchResult
	err     error
	queries []vectorindex.Query
}

func (f *fakeSearcher) Search(_ context.Context, q vectorindex.Query) ([]vectorindex.SearchResult, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	answer   string
	requests []generation.AnswerRequest
}

func (f *fakeGenerator) Answer(_ context.Context, req generation.AnswerRequest) string {
	f.requests = append(f.requests, req)
	return f.answer
}

type fakeRewriter struct {
	rewritten string
}

func (f *fakeRewriter) Rewrite(_ context.Context, query, _ string) string {
	if f.rewritten != "" {
		return f.rewritten
	}
	return query
}

type fakeHistory struct {
	msgs      []session.Message
	histErr   error
	appendErr error
	appended  [][2]string
}

func (f *fakeHistory) History(_ context.Context, _ string, _ int) ([]session.Message, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.msgs, nil
}

func (f *fakeHistory) AppendExchange(_ context.Context, _, question, answer string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, [2]string{question, answer})
	return nil
}

func (f *fakeHistory) FormatForPrompt(msgs []session.Message) string {
	return session.FormatHistory(msgs, 4000)
}

type fakeAuditor struct {
	mu      sync.Mutex
	records []*store.ChatAudit
	err     error
}

func (f *fakeAuditor) InsertChatAudit(_ context.Context, audit *store.ChatAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, audit)
	return nil
}

func resultFor(docID uuid.UUID, score float64) vectorindex.SearchResult {
	return vectorindex.SearchResult{
		ChunkID:       uuid.New(),
		ParentID:      uuid.New(),
		Content:       "child text",
		ParentContent: "parent section text",
		FinalScore:    score,
		Document: vectorindex.DocumentRef{
			ID:        docID,
			SourceRef: "minutes-2024-03.pdf",
			Category:  store.CategoryMeeting,
			Year:      2024,
		},
	}
}

func newTestService(emb *fakeEmbedder, srch *fakeSearcher, gen *fakeGenerator, rw *fakeRewriter, hist *fakeHistory, aud *fakeAuditor) *Service {
	var auditor Auditor
	if aud != nil {
		auditor = aud
	}
	return NewService(emb, srch, gen, rw, hist, auditor, Config{TopK: 5}, zap.NewNop())
}

func TestAskFullTurn(t *testing.T) {
	docA := uuid.New()
	emb := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	srch := &fakeSearcher{results: []vectorindex.SearchResult{
		resultFor(docA, 0.91234999),
	}}
	gen := &fakeGenerator{answer: "2024년 3월에 의결되었습니다."}
	hist := &fakeHistory{msgs: []session.Message{
		{Role: session.RoleUser, Text: "조례 개정안 알려줘"},
		{Role: session.RoleAssistant, Text: "개정안은 3건입니다."},
	}}
	aud := &fakeAuditor{}

	svc := newTestService(emb, srch, gen, &fakeRewriter{}, hist, aud)

	resp, err := svc.Ask(context.Background(), AskRequest{
		SessionID:   "s-1",
		Query:       "언제 의결됐어?",
		AccessLevel: store.AccessPublic,
	})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "2024년 3월에 의결되었습니다.", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, docA, resp.Sources[0].DocumentID)
	assert.Equal(t, 0.9123, resp.Sources[0].Score)

	// Parent content, not child content, feeds generation.
	require.Len(t, gen.requests, 1)
	require.Len(t, gen.requests[0].Context, 1)
	assert.Equal(t, "parent section text", gen.requests[0].Context[0])
	assert.Contains(t, gen.requests[0].History, "개정안은 3건입니다.")

	// The original question was appended, and audited.
	require.Len(t, hist.appended, 1)
	assert.Equal(t, "언제 의결됐어?", hist.appended[0][0])
	require.Len(t, aud.records, 1)
	assert.Equal(t, "s-1", aud.records[0].SessionID)
	require.Len(t, aud.records[0].SourceChunkIDs, 1)
}

func TestAskRewriteFeedsSearchNotHistory(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.5}}
	srch := &fakeSearcher{}
	hist := &fakeHistory{msgs: []session.Message{
		{Role: session.RoleUser, Text: "예산안 이야기해줘"},
	}}
	rw := &fakeRewriter{rewritten: "예산안은 언제 의결됐어?"}

	svc := newTestService(emb, srch, &fakeGenerator{answer: "답변"}, rw, hist, nil)

	resp, err := svc.Ask(context.Background(), AskRequest{
		SessionID:   "s-2",
		Query:       "그거 언제야?",
		AccessLevel: store.AccessCouncil,
	})
	require.NoError(t, err)

	// Embedding and the response carry the rewritten form.
	require.Len(t, emb.texts, 1)
	assert.Equal(t, "예산안은 언제 의결됐어?", emb.texts[0])
	assert.Equal(t, "예산안은 언제 의결됐어?", resp.RewrittenQuery)

	// History keeps the user's literal words.
	require.Len(t, hist.appended, 1)
	assert.Equal(t, "그거 언제야?", hist.appended[0][0])
}

func TestAskValidation(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, &fakeRewriter{}, &fakeHistory{}, nil)

	_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "", AccessLevel: 3})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 0})
	assert.ErrorIs(t, err, ErrInvalidAccessLevel)

	_, err = svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 5})
	assert.ErrorIs(t, err, ErrInvalidAccessLevel)
}

func TestAskSanitizedFailures(t *testing.T) {
	t.Run("embedding outage", func(t *testing.T) {
		emb := &fakeEmbedder{err: errors.New("tei: connection refused to 10.0.3.7:8080")}
		svc := newTestService(emb, &fakeSearcher{}, &fakeGenerator{}, &fakeRewriter{}, &fakeHistory{}, nil)

		_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 4})
		require.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.NotContains(t, err.Error(), "10.0.3.7")
	})

	t.Run("search outage", func(t *testing.T) {
		srch := &fakeSearcher{err: errors.New("pgx: dial tcp: i/o timeout")}
		svc := newTestService(&fakeEmbedder{vector: []float32{1}}, srch, &fakeGenerator{}, &fakeRewriter{}, &fakeHistory{}, nil)

		_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 4})
		require.ErrorIs(t, err, ErrRetrievalUnavailable)
		assert.NotContains(t, err.Error(), "pgx")
	})
}

func TestAskDegradesOnHistoryFailures(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	hist := &fakeHistory{histErr: errors.New("redis down"), appendErr: errors.New("redis down")}
	gen := &fakeGenerator{answer: "답변"}

	svc := newTestService(emb, &fakeSearcher{}, gen, &fakeRewriter{}, hist, nil)

	resp, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, "답변", resp.Answer)

	// With no loadable history, generation sees none.
	require.Len(t, gen.requests, 1)
	assert.Empty(t, gen.requests[0].History)
}

func TestAskAuditFailureDoesNotSurface(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	srch := &fakeSearcher{results: []vectorindex.SearchResult{resultFor(uuid.New(), 0.5)}}
	aud := &fakeAuditor{err: errors.New("insert failed")}

	svc := newTestService(emb, srch, &fakeGenerator{answer: "답변"}, &fakeRewriter{}, &fakeHistory{}, aud)

	_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Query: "질문", AccessLevel: 1})
	require.NoError(t, err)
	svc.Wait()
}

func TestBuildSourcesDedupesByDocument(t *testing.T) {
	docA := uuid.New()
	docB := uuid.New()

	sources := buildSources([]vectorindex.SearchResult{
		resultFor(docA, 0.95),
		resultFor(docB, 0.80),
		resultFor(docA, 0.70),
	})

	require.Len(t, sources, 2)
	assert.Equal(t, docA, sources[0].DocumentID)
	assert.Equal(t, 0.95, sources[0].Score)
	assert.Equal(t, docB, sources[1].DocumentID)
}
