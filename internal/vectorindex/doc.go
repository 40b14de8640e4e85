// Package vectorindex performs filtered, scored nearest-neighbor queries
// over child chunk embeddings.
//
// Candidates come back from PostgreSQL ordered by cosine distance so the
// HNSW index is usable; the hybrid score blending semantic similarity with
// time decay is computed and re-ranked here, with a deterministic chunk-id
// tiebreak. Only child chunks are searched; every result eagerly carries
// its parent's full content for downstream context assembly.
package vectorindex
