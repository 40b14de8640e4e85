package pipeline

import (
	"github.com/google/uuid"

	"github.com/opencouncil/docfind/internal/enricher"
)

// Stage names a resume point in the document pipeline.
type Stage string

const (
	// StageExtract runs the full pipeline from text extraction.
	StageExtract Stage = "extract"
	// StageSegment re-extracts and re-segments but keeps the document row.
	StageSegment Stage = "segment"
	// StageEmbed skips to embedding; materialized chunks must already exist.
	StageEmbed Stage = "embed"
)

// DocumentParams starts one document's pipeline run.
type DocumentParams struct {
	DocumentID uuid.UUID
	// SourcePath is the document's text file, relative to the worker's
	// document root.
	SourcePath string
	Hints      enricher.Hints
	// StartStage resumes a failed run part-way. Empty means StageExtract.
	StartStage Stage
	// Summarize asks the generation model for decision summaries when the
	// hints carry none. Used for meeting transcripts.
	Summarize bool
}

// DocumentResult reports one completed run.
type DocumentResult struct {
	DocumentID   uuid.UUID
	Parents      int
	Children     int
	Embedded     int
	FailedChunks int
}

// FolderDocument is one entry of a folder ingestion request.
type FolderDocument struct {
	DocumentID uuid.UUID
	SourcePath string
	Hints      enricher.Hints
	Summarize  bool
}

// FolderParams fans out one child pipeline per document.
type FolderParams struct {
	Documents []FolderDocument
	// MaxParallel bounds concurrent child workflows. Zero means 4.
	MaxParallel int
}

// FolderResult aggregates the fan-out.
type FolderResult struct {
	Succeeded []uuid.UUID
	Failed    []uuid.UUID
}

// Activity payloads.

type ExtractInput struct {
	DocumentID uuid.UUID
	SourcePath string
}

type SegmentInput struct {
	DocumentID uuid.UUID
	Text       string
	Hints      enricher.Hints
}

type SegmentOutput struct {
	Parents  int
	Children int
}

type EmbedInput struct {
	DocumentID uuid.UUID
}

type EmbedOutput struct {
	Embedded int
	Failed   int
}

type SummarizeInput struct {
	DocumentID uuid.UUID
	Text       string
}

type SummarizeOutput struct {
	Decisions []string
}
