package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Category classifies a document's broad origin.
type Category string

const (
	CategoryMeeting Category = "meeting"
	CategoryWork    Category = "work"
	CategoryOther   Category = "other"
)

// MeetingType is the reliability subtype of a meeting document. Results
// outrank minutes which outrank agendas; the ordering is an externally
// visible ranking hint, not a scoring input.
type MeetingType string

const (
	MeetingAgenda  MeetingType = "agenda"
	MeetingMinutes MeetingType = "minutes"
	MeetingResult  MeetingType = "result"
)

// Access levels are integers 1-4, 1 most restrictive, 4 public.
const (
	AccessSensitive  = 1
	AccessDepartment = 2
	AccessCouncil    = 3
	AccessPublic     = 4
)

// Status tracks a document through the processing pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusSegmenting Status = "segmenting"
	StatusEmbedding  Status = "embedding"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Document is one ingested source document.
type Document struct {
	ID            uuid.UUID
	SourceRef     string
	Category      Category
	MeetingType   *MeetingType
	Year          int
	Department    string
	AccessLevel   int
	TimeDecayDate *time.Time
	EventID       *uuid.UUID
	Status        Status
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Extra holds provenance fields not needed by core logic.
	Extra map[string]any
}

// Chunk is one row of the parent/child hierarchy. Parents hold a full
// section and never carry an embedding; children always carry a non-nil
// ParentID and a denormalized copy of the parent's text so retrieval needs
// no second lookup.
type Chunk struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	IsParent      bool
	ParentID      *uuid.UUID
	ParentContent string
	Content       string
	// ChildIndex is the chunk's ordinal: section index for parents, index
	// within the parent for children.
	ChildIndex    int
	TokenEstimate int
	AccessLevel   int
	TimeDecayDate *time.Time
	Embedding     *pgvector.Vector
	CreatedAt     time.Time
}

// Event groups documents and chunks around an activity. Timeline maps a
// meeting name to the parent chunk ids recorded under it; Decisions holds a
// parallel per-meeting list of decision summaries.
type Event struct {
	ID        uuid.UUID
	Title     string
	Year      int
	Timeline  map[string][]uuid.UUID
	Decisions map[string][]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatAudit is the long-term record of one answered turn, written off the
// response path.
type ChatAudit struct {
	ID             uuid.UUID
	SessionID      string
	Question       string
	Answer         string
	SourceChunkIDs []uuid.UUID
	CreatedAt      time.Time
}
