package store

import (
	"context"
	"fmt"
)

// EmbeddingDim is the fixed embedding dimensionality of chunk vectors.
const EmbeddingDim = 768

// schema is applied idempotently at migrate time.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS documents (
		id              UUID PRIMARY KEY,
		source_ref      TEXT NOT NULL,
		category        TEXT NOT NULL,
		meeting_type    TEXT,
		year            INT NOT NULL DEFAULT 0,
		department      TEXT NOT NULL DEFAULT '',
		access_level    INT NOT NULL DEFAULT 3 CHECK (access_level BETWEEN 1 AND 4),
		time_decay_date DATE,
		event_id        UUID,
		status          TEXT NOT NULL DEFAULT 'pending',
		processed_at    TIMESTAMPTZ,
		extra           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		id              UUID PRIMARY KEY,
		document_id     UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		is_parent       BOOLEAN NOT NULL,
		parent_id       UUID REFERENCES chunks(id) ON DELETE CASCADE,
		parent_content  TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL,
		child_index     INT NOT NULL DEFAULT 0,
		token_estimate  INT NOT NULL DEFAULT 0,
		access_level    INT NOT NULL DEFAULT 3 CHECK (access_level BETWEEN 1 AND 4),
		time_decay_date DATE,
		embedding       vector(%d),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (is_parent OR parent_id IS NOT NULL)
	)`, EmbeddingDim),

	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_access ON chunks (access_level) WHERE NOT is_parent`,

	`CREATE TABLE IF NOT EXISTS events (
		id         UUID PRIMARY KEY,
		title      TEXT NOT NULL,
		year       INT NOT NULL,
		timeline   JSONB NOT NULL DEFAULT '{}'::jsonb,
		decisions  JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS chat_audit (
		id               UUID PRIMARY KEY,
		session_id       TEXT NOT NULL,
		question         TEXT NOT NULL,
		answer           TEXT NOT NULL,
		source_chunk_ids UUID[] NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_audit_session ON chat_audit (session_id, created_at)`,
}

// Migrate applies the schema. Every statement is idempotent, so migrate can
// run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// EnsureVectorIndex creates the approximate-nearest-neighbor index over
// child embeddings if it does not exist. Index builds can be slow on large
// tables, so this is never called on the request-serving path.
func (db *DB) EnsureVectorIndex(ctx context.Context) error {
	const stmt = `CREATE INDEX IF NOT EXISTS idx_chunks_embedding_hnsw
		ON chunks USING hnsw (embedding vector_cosine_ops)
		WHERE NOT is_parent`
	if _, err := db.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	return nil
}
