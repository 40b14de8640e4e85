package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, source_ref, category, meeting_type, year, department,
	access_level, time_decay_date, event_id, status, processed_at, extra,
	created_at, updated_at`

// CreateDocument inserts a new document in pending state.
func (db *DB) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.AccessLevel == 0 {
		doc.AccessLevel = AccessCouncil
	}
	if doc.Extra == nil {
		doc.Extra = map[string]any{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO documents (id, source_ref, category, meeting_type, year,
			department, access_level, time_decay_date, event_id, status, extra)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.ID, doc.SourceRef, doc.Category, doc.MeetingType, doc.Year,
		doc.Department, doc.AccessLevel, doc.TimeDecayDate, doc.EventID,
		doc.Status, doc.Extra,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument fetches one document by id.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// UpdateDocumentStatus moves a document through pipeline states. ProcessedAt
// is stamped when the document reaches ready.
func (db *DB) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	var err error
	if status == StatusReady {
		_, err = db.pool.Exec(ctx,
			`UPDATE documents SET status = $2, processed_at = now(), updated_at = now() WHERE id = $1`,
			id, status)
	} else {
		_, err = db.pool.Exec(ctx,
			`UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`,
			id, status)
	}
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return nil
}

// UpdateDocumentEnrichment stamps access level, time-decay date, and event
// association produced by the enricher.
func (db *DB) UpdateDocumentEnrichment(ctx context.Context, id uuid.UUID, accessLevel int, decayDate time.Time, eventID *uuid.UUID) error {
	if accessLevel < AccessSensitive || accessLevel > AccessPublic {
		return fmt.Errorf("%w: access level %d out of range", ErrInvalidConfig, accessLevel)
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE documents SET access_level = $2, time_decay_date = $3,
			event_id = $4, updated_at = now() WHERE id = $1`,
		id, accessLevel, decayDate, eventID)
	if err != nil {
		return fmt.Errorf("updating document enrichment: %w", err)
	}
	return nil
}

// DeleteDocument removes a document. Chunk rows cascade.
func (db *DB) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDocumentsByStatus returns documents in a given pipeline state, oldest
// first, for re-driving failed or stalled work.
func (db *DB) ListDocumentsByStatus(ctx context.Context, status Status, limit int) ([]*Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID, &doc.SourceRef, &doc.Category, &doc.MeetingType, &doc.Year,
		&doc.Department, &doc.AccessLevel, &doc.TimeDecayDate, &doc.EventID,
		&doc.Status, &doc.ProcessedAt, &doc.Extra, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &doc, nil
}
