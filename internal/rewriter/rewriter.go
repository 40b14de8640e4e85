// Package rewriter turns pronoun-laden follow-up questions into
// self-contained search queries using conversation history.
//
// Rewriting is a best-effort enhancement: the rewriter short-circuits when
// the question is already self-contained, validates whatever the model
// returns, and falls back to the original query on any failure. Retrieval
// never blocks on it.
package rewriter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/session"
)

// maxGrowthFactor rejects rewritten queries longer than this multiple of
// the original, a guard against runaway or hallucinated output.
const maxGrowthFactor = 3

// minRewriteLength rejects degenerate rewrites.
const minRewriteLength = 2

// contextLexicon enumerates context-dependent terms: demonstrative
// pronouns, deictic time and place references, and backward-reference
// verbs, in Korean and English. A query containing none of these is
// treated as self-contained.
var contextLexicon = []string{
	// Korean demonstratives
	"그거", "그것", "이거", "이것", "저거", "저것", "그게", "이게",
	"그건", "이건", "그런", "이런",
	// Korean deictic time/place
	"그때", "그 때", "그날", "그 날", "거기", "그곳", "저기",
	"아까", "방금", "그동안", "당시",
	// Korean person references
	"그 사람", "그분", "그 분", "그들",
	// Korean backward references
	"앞에서", "위에서", "이전에", "아까 말한", "말했던", "언급한", "말한 것",
	// English demonstratives and deictics
	"that one", "this one", "those", "these",
	"back then", "at that time", "over there",
	// English backward references
	"mentioned", "previous", "earlier", "above", "aforementioned",
}

// Rewriter rewrites follow-up questions against session history.
type Rewriter struct {
	completer generation.Completer
	logger    *zap.Logger
}

// New creates a Rewriter.
func New(completer generation.Completer, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{completer: completer, logger: logger}
}

// NeedsRewrite reports whether a query contains context-dependent terms.
func NeedsRewrite(query string) bool {
	lowered := strings.ToLower(query)
	for _, term := range contextLexicon {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// Rewrite returns a standalone version of the query. The original query is
// returned unchanged when history is empty, when the query is already
// self-contained, or when the model's output fails validation or the call
// fails outright.
func (r *Rewriter) Rewrite(ctx context.Context, query, formattedHistory string) string {
	if formattedHistory == "" || formattedHistory == session.EmptyHistory {
		return query
	}
	if !NeedsRewrite(query) {
		return query
	}

	out, err := r.completer.Complete(ctx, buildRewritePrompt(query, formattedHistory))
	if err != nil {
		r.logger.Warn("query rewrite failed, using original", zap.Error(err))
		return query
	}

	rewritten := strings.TrimSpace(out)
	if !validRewrite(query, rewritten) {
		r.logger.Debug("rejected rewrite candidate",
			zap.Int("original_len", len([]rune(query))),
			zap.Int("rewritten_len", len([]rune(rewritten))))
		return query
	}
	return rewritten
}

// validRewrite applies the acceptance heuristics: non-empty, at least two
// characters, and no longer than three times the original.
func validRewrite(original, rewritten string) bool {
	n := len([]rune(rewritten))
	if n < minRewriteLength {
		return false
	}
	if n > maxGrowthFactor*len([]rune(original)) {
		return false
	}
	return true
}

func buildRewritePrompt(query, history string) string {
	var b strings.Builder
	b.WriteString("아래 대화를 참고하여 마지막 질문을 대화 없이도 이해되는 완결된 검색 질문 하나로 다시 쓰세요. ")
	b.WriteString("다시 쓴 질문만 출력하세요.\n\n")
	b.WriteString("[대화]\n")
	b.WriteString(history)
	b.WriteString("\n\n[질문]\n")
	b.WriteString(query)
	fmt.Fprintf(&b, "\n\n[다시 쓴 질문]\n")
	return b.String()
}
