package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertChatAudit records one answered turn in the long-term audit log.
// Called off the response path; failures are logged by the caller, never
// surfaced to the user.
func (db *DB) InsertChatAudit(ctx context.Context, audit *ChatAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO chat_audit (id, session_id, question, answer, source_chunk_ids)
		 VALUES ($1, $2, $3, $4, $5)`,
		audit.ID, audit.SessionID, audit.Question, audit.Answer, audit.SourceChunkIDs)
	if err != nil {
		return fmt.Errorf("inserting chat audit: %w", err)
	}
	return nil
}
