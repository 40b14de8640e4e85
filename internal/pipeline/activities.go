package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/embeddings"
	"github.com/opencouncil/docfind/internal/enricher"
	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/segmenter"
	"github.com/opencouncil/docfind/internal/store"
)

var (
	// ErrBadSourcePath indicates a source path escaping the document root.
	ErrBadSourcePath = errors.New("invalid source path")

	// ErrEmptyDocument indicates a source file with no usable text.
	ErrEmptyDocument = errors.New("document has no text content")
)

// embedPageSize bounds how many pending chunks one embed pass loads.
const embedPageSize = 256

// DocumentStore is the persistence surface the activities need. *store.DB
// satisfies it.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status store.Status) error
	ChunksMissingEmbeddings(ctx context.Context, documentID uuid.UUID, limit int) ([]store.Chunk, error)
	UpdateChunkEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error
}

// Summarizer extracts decision summaries from a meeting transcript.
// *generation.Service satisfies it.
type Summarizer interface {
	SummarizeTranscript(ctx context.Context, transcript string) (*generation.TranscriptSummary, error)
}

// Activities holds the worker-side dependencies of the pipeline.
type Activities struct {
	store      DocumentStore
	segmenter  *segmenter.Segmenter
	enricher   *enricher.Enricher
	batcher    *embeddings.Batcher
	summarizer Summarizer
	// root is the directory document source paths resolve under.
	root   string
	logger *zap.Logger
}

// NewActivities wires the pipeline activities. summarizer may be nil to
// disable transcript summarization.
func NewActivities(st DocumentStore, seg *segmenter.Segmenter, enr *enricher.Enricher, batcher *embeddings.Batcher, summarizer Summarizer, root string, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		store:      st,
		segmenter:  seg,
		enricher:   enr,
		batcher:    batcher,
		summarizer: summarizer,
		root:       root,
		logger:     logger,
	}
}

// ExtractText reads and normalizes the document's source text. The path must
// stay under the document root.
func (a *Activities) ExtractText(ctx context.Context, input ExtractInput) (string, error) {
	if err := a.store.UpdateDocumentStatus(ctx, input.DocumentID, store.StatusExtracting); err != nil {
		return "", fmt.Errorf("marking document extracting: %w", err)
	}

	path, err := a.resolveSource(input.SourcePath)
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source %s: %w", input.SourcePath, err)
	}

	text := normalizeText(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, input.SourcePath)
	}
	return text, nil
}

// SummarizeTranscript asks the generation model for per-meeting decision
// summaries. A model failure degrades to no decisions rather than failing
// the pipeline.
func (a *Activities) SummarizeTranscript(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error) {
	if a.summarizer == nil {
		return &SummarizeOutput{}, nil
	}

	summary, err := a.summarizer.SummarizeTranscript(ctx, input.Text)
	if err != nil {
		a.logger.Warn("transcript summarization failed",
			zap.String("document_id", input.DocumentID.String()),
			zap.Error(err))
		return &SummarizeOutput{}, nil
	}
	return &SummarizeOutput{Decisions: summary.Decisions}, nil
}

// SegmentDocument segments the text, enriches the document, and replaces its
// chunk hierarchy. Safe to re-run: materialization replaces existing chunks.
func (a *Activities) SegmentDocument(ctx context.Context, input SegmentInput) (*SegmentOutput, error) {
	if err := a.store.UpdateDocumentStatus(ctx, input.DocumentID, store.StatusSegmenting); err != nil {
		return nil, fmt.Errorf("marking document segmenting: %w", err)
	}

	doc, err := a.store.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	parents := a.segmenter.Segment(input.Text)
	if len(parents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.SourceRef)
	}

	if _, err := a.enricher.Enrich(ctx, doc, input.Hints); err != nil {
		return nil, fmt.Errorf("enriching document: %w", err)
	}

	chunks, err := a.enricher.MaterializeChunks(ctx, doc, parents, input.Hints)
	if err != nil {
		return nil, fmt.Errorf("materializing chunks: %w", err)
	}

	out := &SegmentOutput{Parents: len(parents)}
	out.Children = len(chunks) - out.Parents
	return out, nil
}

// EmbedDocument embeds every child chunk still missing a vector, page by
// page. Failed batches are counted but do not stop sibling batches.
func (a *Activities) EmbedDocument(ctx context.Context, input EmbedInput) (*EmbedOutput, error) {
	if err := a.store.UpdateDocumentStatus(ctx, input.DocumentID, store.StatusEmbedding); err != nil {
		return nil, fmt.Errorf("marking document embedding: %w", err)
	}

	out := &EmbedOutput{}
	failed := make(map[uuid.UUID]bool)

	for {
		chunks, err := a.store.ChunksMissingEmbeddings(ctx, input.DocumentID, embedPageSize)
		if err != nil {
			return nil, fmt.Errorf("loading pending chunks: %w", err)
		}

		// Chunks whose batch already failed stay unembedded; stop once a
		// page holds nothing new.
		items := make([]embeddings.Item, 0, len(chunks))
		for _, c := range chunks {
			if !failed[c.ID] {
				items = append(items, embeddings.Item{ID: c.ID, Text: c.Content})
			}
		}
		if len(items) == 0 {
			break
		}

		result, err := a.batcher.EmbedAll(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks: %w", err)
		}

		if len(result.IDs) > 0 {
			if err := a.store.UpdateChunkEmbeddings(ctx, result.IDs, result.Vectors); err != nil {
				return nil, fmt.Errorf("storing embeddings: %w", err)
			}
			out.Embedded += len(result.IDs)
		}
		for _, id := range result.FailedIDs {
			failed[id] = true
		}
	}

	out.Failed = len(failed)
	return out, nil
}

// SetDocumentStatus records a terminal status transition.
func (a *Activities) SetDocumentStatus(ctx context.Context, documentID uuid.UUID, status store.Status) error {
	return a.store.UpdateDocumentStatus(ctx, documentID, status)
}

// resolveSource joins the source path under the document root, rejecting
// traversal and absolute paths.
func (a *Activities) resolveSource(sourcePath string) (string, error) {
	if sourcePath == "" || filepath.IsAbs(sourcePath) {
		return "", fmt.Errorf("%w: %q", ErrBadSourcePath, sourcePath)
	}
	cleaned := filepath.Clean(sourcePath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrBadSourcePath, sourcePath)
	}
	return filepath.Join(a.root, cleaned), nil
}

// normalizeText unifies line endings, strips a UTF-8 BOM, and trims trailing
// whitespace from every line.
func normalizeText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
