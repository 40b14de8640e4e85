package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FindEvent looks up an event by case-insensitive substring title match and
// exact year. Returns ErrNotFound when nothing matches.
func (db *DB) FindEvent(ctx context.Context, title string, year int) (*Event, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, title, year, timeline, decisions, created_at, updated_at
		 FROM events
		 WHERE position(lower($1) in lower(title)) > 0 AND year = $2
		 ORDER BY created_at ASC LIMIT 1`,
		title, year)
	return scanEvent(row)
}

// CreateEvent inserts a new event with an empty timeline.
func (db *DB) CreateEvent(ctx context.Context, title string, year int) (*Event, error) {
	ev := &Event{
		ID:        uuid.New(),
		Title:     title,
		Year:      year,
		Timeline:  map[string][]uuid.UUID{},
		Decisions: map[string][]string{},
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO events (id, title, year) VALUES ($1, $2, $3)`,
		ev.ID, ev.Title, ev.Year)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return ev, nil
}

// AppendTimeline appends parent chunk ids under a meeting-name key,
// deduplicating by identifier, and appends any decision summaries to the
// parallel per-meeting list. Runs read-modify-write under a row lock so
// concurrent pipeline runs serialize per event.
func (db *DB) AppendTimeline(ctx context.Context, eventID uuid.UUID, meetingName string, parentIDs []uuid.UUID, decisions []string) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, title, year, timeline, decisions, created_at, updated_at
		 FROM events WHERE id = $1 FOR UPDATE`, eventID)
	ev, err := scanEvent(row)
	if err != nil {
		return err
	}

	existing := ev.Timeline[meetingName]
	seen := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range parentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		existing = append(existing, id)
		seen[id] = struct{}{}
	}
	ev.Timeline[meetingName] = existing

	if len(decisions) > 0 {
		ev.Decisions[meetingName] = append(ev.Decisions[meetingName], decisions...)
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET timeline = $2, decisions = $3, updated_at = now() WHERE id = $1`,
		eventID, ev.Timeline, ev.Decisions)
	if err != nil {
		return fmt.Errorf("updating event timeline: %w", err)
	}
	return tx.Commit(ctx)
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.Title, &ev.Year, &ev.Timeline, &ev.Decisions,
		&ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	if ev.Timeline == nil {
		ev.Timeline = map[string][]uuid.UUID{}
	}
	if ev.Decisions == nil {
		ev.Decisions = map[string][]string{}
	}
	return &ev, nil
}
