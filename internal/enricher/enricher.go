// Package enricher assigns access-control and temporal metadata to a
// document and materializes its chunk hierarchy.
//
// Access levels follow a fixed policy table evaluated in order, first match
// wins. Time-decay dates follow an availability chain: explicit hint, the
// document's processed timestamp, then the current date. Event association
// is best-effort and never fails enrichment.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/segmenter"
	"github.com/opencouncil/docfind/internal/store"
)

// Hints carries classification and event signals gathered upstream
// (filename standardization, operator input).
type Hints struct {
	// Sensitive forces the most restrictive access level.
	Sensitive bool

	// DateHint, when set, becomes the time-decay date.
	DateHint *time.Time

	// EventTitle and EventYear associate the document with an activity.
	EventTitle string
	EventYear  int

	// MeetingName keys the event timeline entry for this document's
	// parent chunks.
	MeetingName string

	// Decisions are optional summary strings appended to the event's
	// per-meeting decision list.
	Decisions []string
}

// Result is the metadata produced by enrichment.
type Result struct {
	AccessLevel   int
	TimeDecayDate time.Time
	EventID       *uuid.UUID
}

// Store is the persistence surface the enricher needs. *store.DB satisfies it.
type Store interface {
	UpdateDocumentEnrichment(ctx context.Context, id uuid.UUID, accessLevel int, decayDate time.Time, eventID *uuid.UUID) error
	ReplaceChunks(ctx context.Context, doc *store.Document, parents []segmenter.Parent) ([]store.Chunk, error)
	FindEvent(ctx context.Context, title string, year int) (*store.Event, error)
	CreateEvent(ctx context.Context, title string, year int) (*store.Event, error)
	AppendTimeline(ctx context.Context, eventID uuid.UUID, meetingName string, parentIDs []uuid.UUID, decisions []string) error
}

// Enricher computes and persists document metadata.
type Enricher struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Enricher.
func New(st Store, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{store: st, logger: logger, now: time.Now}
}

// accessRule is one row of the access policy table.
type accessRule struct {
	name    string
	applies func(doc *store.Document, hints Hints) (int, bool)
}

// accessPolicy is evaluated in order; the first matching rule wins.
var accessPolicy = []accessRule{
	{
		name: "sensitive flag",
		applies: func(_ *store.Document, hints Hints) (int, bool) {
			if hints.Sensitive {
				return store.AccessSensitive, true
			}
			return 0, false
		},
	},
	{
		// Final meeting results are public by transparency policy.
		name: "meeting result",
		applies: func(doc *store.Document, _ Hints) (int, bool) {
			if doc.Category == store.CategoryMeeting && doc.MeetingType != nil && *doc.MeetingType == store.MeetingResult {
				return store.AccessPublic, true
			}
			return 0, false
		},
	},
	{
		name: "other meeting document",
		applies: func(doc *store.Document, _ Hints) (int, bool) {
			if doc.Category == store.CategoryMeeting {
				return store.AccessCouncil, true
			}
			return 0, false
		},
	},
	{
		name: "work document",
		applies: func(doc *store.Document, _ Hints) (int, bool) {
			if doc.Category == store.CategoryWork {
				return store.AccessDepartment, true
			}
			return 0, false
		},
	},
	{
		name: "default",
		applies: func(_ *store.Document, _ Hints) (int, bool) {
			return store.AccessCouncil, true
		},
	},
}

// AccessLevel evaluates the policy table for a document.
func AccessLevel(doc *store.Document, hints Hints) int {
	for _, rule := range accessPolicy {
		if level, ok := rule.applies(doc, hints); ok {
			return level
		}
	}
	return store.AccessCouncil
}

// Enrich computes the document's access level, time-decay date, and event
// association, persists them on the document row, and returns them. The
// document struct is updated in place so chunk materialization stamps the
// fresh values.
func (e *Enricher) Enrich(ctx context.Context, doc *store.Document, hints Hints) (*Result, error) {
	res := &Result{
		AccessLevel:   AccessLevel(doc, hints),
		TimeDecayDate: e.decayDate(doc, hints),
	}

	eventID, err := e.associateEvent(ctx, hints)
	if err != nil {
		// Event association is an enhancement; a lookup failure must not
		// fail the pipeline.
		e.logger.Warn("event association failed",
			zap.String("document_id", doc.ID.String()),
			zap.String("event_title", hints.EventTitle),
			zap.Error(err))
	}
	res.EventID = eventID

	if err := e.store.UpdateDocumentEnrichment(ctx, doc.ID, res.AccessLevel, res.TimeDecayDate, res.EventID); err != nil {
		return nil, fmt.Errorf("persisting enrichment: %w", err)
	}

	doc.AccessLevel = res.AccessLevel
	decay := res.TimeDecayDate
	doc.TimeDecayDate = &decay
	doc.EventID = res.EventID
	return res, nil
}

// decayDate picks the time-decay date: explicit hint, then the document's
// processed timestamp, then the current date. Stored once; never recomputed.
func (e *Enricher) decayDate(doc *store.Document, hints Hints) time.Time {
	if hints.DateHint != nil {
		return truncateToDate(*hints.DateHint)
	}
	if doc.ProcessedAt != nil {
		return truncateToDate(*doc.ProcessedAt)
	}
	return truncateToDate(e.now())
}

// associateEvent resolves the event hints against existing events, creating
// one when both title and year are present but nothing matches.
// Insufficient hints leave the document unassociated, which is not an error.
func (e *Enricher) associateEvent(ctx context.Context, hints Hints) (*uuid.UUID, error) {
	if hints.EventTitle == "" || hints.EventYear == 0 {
		return nil, nil
	}

	ev, err := e.store.FindEvent(ctx, hints.EventTitle, hints.EventYear)
	if err == nil {
		return &ev.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := e.store.CreateEvent(ctx, hints.EventTitle, hints.EventYear)
	if err != nil {
		return nil, err
	}
	return &created.ID, nil
}

// MaterializeChunks persists the segmenter output for an enriched document
// and, when the document is associated with an event and a meeting name is
// known, appends the new parent chunk ids to the event timeline.
func (e *Enricher) MaterializeChunks(ctx context.Context, doc *store.Document, parents []segmenter.Parent, hints Hints) ([]store.Chunk, error) {
	chunks, err := e.store.ReplaceChunks(ctx, doc, parents)
	if err != nil {
		return nil, fmt.Errorf("materializing chunks: %w", err)
	}

	if doc.EventID != nil && hints.MeetingName != "" {
		var parentIDs []uuid.UUID
		for _, c := range chunks {
			if c.IsParent {
				parentIDs = append(parentIDs, c.ID)
			}
		}
		if err := e.store.AppendTimeline(ctx, *doc.EventID, hints.MeetingName, parentIDs, hints.Decisions); err != nil {
			// Timeline upkeep is a side effect; chunk rows are already
			// committed, so log and continue.
			e.logger.Warn("event timeline update failed",
				zap.String("event_id", doc.EventID.String()),
				zap.String("meeting", hints.MeetingName),
				zap.Error(err))
		}
	}
	return chunks, nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
