package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/opencouncil/docfind/internal/segmenter"
)

// ReplaceChunks materializes segmenter output for a document inside one
// transaction: existing chunk rows are deleted, parents are inserted first
// to obtain stable identifiers, then children with resolved parent
// references and a denormalized copy of the parent text. Every row is
// stamped with the document's current access level and time-decay date.
//
// Replace-not-append keeps pipeline retries idempotent at the document
// level.
func (db *DB) ReplaceChunks(ctx context.Context, doc *Document, parents []segmenter.Parent) ([]Chunk, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return nil, fmt.Errorf("clearing existing chunks: %w", err)
	}

	var stored []Chunk

	// First pass: parents.
	parentIDs := make([]uuid.UUID, len(parents))
	for i, p := range parents {
		id := uuid.New()
		parentIDs[i] = id
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, is_parent, content, child_index,
				token_estimate, access_level, time_decay_date)
			 VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7)`,
			id, doc.ID, p.Content, p.Index, p.TokenEstimate,
			doc.AccessLevel, doc.TimeDecayDate)
		if err != nil {
			return nil, fmt.Errorf("inserting parent chunk %d: %w", p.Index, err)
		}
		stored = append(stored, Chunk{
			ID:            id,
			DocumentID:    doc.ID,
			IsParent:      true,
			Content:       p.Content,
			ChildIndex:    p.Index,
			TokenEstimate: p.TokenEstimate,
			AccessLevel:   doc.AccessLevel,
			TimeDecayDate: doc.TimeDecayDate,
		})
	}

	// Second pass: children with resolved parent references.
	batch := &pgx.Batch{}
	var children []Chunk
	for i, p := range parents {
		parentID := parentIDs[i]
		for _, c := range p.Children {
			id := uuid.New()
			batch.Queue(
				`INSERT INTO chunks (id, document_id, is_parent, parent_id,
					parent_content, content, child_index, token_estimate,
					access_level, time_decay_date)
				 VALUES ($1, $2, FALSE, $3, $4, $5, $6, $7, $8, $9)`,
				id, doc.ID, parentID, p.Content, c.Content, c.Index,
				c.TokenEstimate, doc.AccessLevel, doc.TimeDecayDate)
			pid := parentID
			children = append(children, Chunk{
				ID:            id,
				DocumentID:    doc.ID,
				ParentID:      &pid,
				ParentContent: p.Content,
				Content:       c.Content,
				ChildIndex:    c.Index,
				TokenEstimate: c.TokenEstimate,
				AccessLevel:   doc.AccessLevel,
				TimeDecayDate: doc.TimeDecayDate,
			})
		}
	}
	br := tx.SendBatch(ctx, batch)
	for range children {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("inserting child chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing chunks: %w", err)
	}
	return append(stored, children...), nil
}

// ChunksMissingEmbeddings returns child chunk ids and contents that still
// need vectors, oldest first.
func (db *DB) ChunksMissingEmbeddings(ctx context.Context, documentID uuid.UUID, limit int) ([]Chunk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, content FROM chunks
		 WHERE document_id = $1 AND NOT is_parent AND embedding IS NULL
		 ORDER BY created_at ASC, id ASC LIMIT $2`,
		documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// UpdateChunkEmbeddings writes one embedding per chunk id. Lengths must
// match; the update is batched in one round trip.
func (db *DB) UpdateChunkEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids but %d vectors", ErrInvalidConfig, len(ids), len(vectors))
	}
	batch := &pgx.Batch{}
	for i, id := range ids {
		vec := pgvector.NewVector(vectors[i])
		batch.Queue(`UPDATE chunks SET embedding = $2 WHERE id = $1`, id, vec)
	}
	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("updating embedding for chunk %s: %w", ids[i], err)
		}
	}
	return nil
}

// ParentChunkIDs returns the ids of a document's parent chunks in order.
func (db *DB) ParentChunkIDs(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM chunks
		 WHERE document_id = $1 AND is_parent ORDER BY child_index ASC`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing parent chunks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning parent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
