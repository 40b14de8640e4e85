package vectorindex

import (
	"time"

	"github.com/google/uuid"

	"github.com/opencouncil/docfind/internal/store"
)

// DocumentRef is the denormalized display pointer carried by every result.
type DocumentRef struct {
	ID          uuid.UUID
	SourceRef   string
	Category    store.Category
	MeetingType *store.MeetingType
	Year        int
	Department  string
}

// SearchResult is one ranked child chunk. Derived, never persisted.
type SearchResult struct {
	ChunkID       uuid.UUID
	ParentID      uuid.UUID
	Content       string
	ParentContent string
	ChildIndex    int
	AccessLevel   int
	TimeDecayDate *time.Time

	SemanticScore float64
	TimeScore     float64
	FinalScore    float64

	Document DocumentRef
}

// ContextContent returns the text to hand to answer generation: the
// parent's full section when available, else the child's own text.
func (r SearchResult) ContextContent() string {
	if r.ParentContent != "" {
		return r.ParentContent
	}
	return r.Content
}
