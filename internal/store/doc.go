// Package store provides PostgreSQL persistence for documents, chunks,
// events, and the chat audit log.
//
// Chunk rows carry pgvector embeddings; similarity SQL lives in the
// vectorindex package, which shares this package's connection pool. Chunk
// materialization for a document is replace-not-append so a retried
// pipeline run never duplicates rows.
package store
