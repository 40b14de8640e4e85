package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/store"
)

var (
	// ErrInvalidAccessLevel indicates a requester level outside 1-4.
	ErrInvalidAccessLevel = errors.New("invalid access level")

	// ErrInvalidWeight indicates a semantic weight outside [0,1].
	ErrInvalidWeight = errors.New("invalid semantic weight")

	// ErrEmptyVector indicates a nil or empty query vector.
	ErrEmptyVector = errors.New("empty query vector")
)

// oversample controls how many ANN candidates are fetched per requested
// result before hybrid re-ranking. Time decay can promote rows outside the
// top-k by pure similarity, so the candidate set must be wider than k.
const oversample = 4

// minCandidates floors the candidate fetch for small limits.
const minCandidates = 50

// Query is one similarity search request.
type Query struct {
	// Vector is the embedded query.
	Vector []float32

	// Limit caps the returned results. Zero means 10.
	Limit int

	// RequesterAccessLevel filters visibility: a chunk is visible when
	// chunk.AccessLevel >= RequesterAccessLevel, so a numerically lower
	// (more privileged) requester sees strictly more.
	RequesterAccessLevel int

	// SemanticWeight blends semantic similarity against time decay.
	// Zero means DefaultSemanticWeight. Ignored by SearchSimilar.
	SemanticWeight float64

	// Year, when nonzero, restricts results to documents of that year.
	Year int
}

func (q *Query) normalize() error {
	if len(q.Vector) == 0 {
		return ErrEmptyVector
	}
	if q.RequesterAccessLevel < store.AccessSensitive || q.RequesterAccessLevel > store.AccessPublic {
		return fmt.Errorf("%w: %d", ErrInvalidAccessLevel, q.RequesterAccessLevel)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.SemanticWeight == 0 {
		q.SemanticWeight = DefaultSemanticWeight
	}
	if q.SemanticWeight < 0 || q.SemanticWeight > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, q.SemanticWeight)
	}
	return nil
}

// Gateway runs filtered nearest-neighbor queries against the chunk table.
type Gateway struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a Gateway sharing the store's connection pool.
func New(db *store.DB, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		pool:    db.Pool(),
		logger:  logger,
		metrics: NewMetrics(logger),
		now:     time.Now,
	}
}

// EnsureIndex creates the ANN index over child embeddings if missing.
// Idempotent and potentially slow; callers keep it off the serving path.
func (g *Gateway) EnsureIndex(ctx context.Context, db *store.DB) error {
	return db.EnsureVectorIndex(ctx)
}

// Search runs the hybrid query: ANN candidates by cosine distance under the
// access (and optional year) filter, then re-ranked by
// weight*semantic + (1-weight)*timeDecay with a deterministic tiebreak.
func (g *Gateway) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	start := g.now()
	results, err := g.search(ctx, q, true)
	g.metrics.RecordSearch(ctx, "hybrid", time.Since(start), len(results), err)
	return results, err
}

// SearchSimilar runs the plain similarity-only mode: same visibility rule
// and optional year filter, no time term.
func (g *Gateway) SearchSimilar(ctx context.Context, q Query) ([]SearchResult, error) {
	start := g.now()
	results, err := g.search(ctx, q, false)
	g.metrics.RecordSearch(ctx, "similarity", time.Since(start), len(results), err)
	return results, err
}

func (g *Gateway) search(ctx context.Context, q Query, hybrid bool) ([]SearchResult, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	fetch := q.Limit
	if hybrid {
		fetch = q.Limit * oversample
		if fetch < minCandidates {
			fetch = minCandidates
		}
	}

	vec := pgvector.NewVector(q.Vector)
	sql := `SELECT c.id, c.parent_id, c.content, c.parent_content, c.child_index,
			c.access_level, c.time_decay_date,
			c.embedding <=> $1 AS distance,
			d.id, d.source_ref, d.category, d.meeting_type, d.year, d.department
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE NOT c.is_parent
		  AND c.embedding IS NOT NULL
		  AND c.access_level >= $2`
	args := []any{vec, q.RequesterAccessLevel}
	if q.Year != 0 {
		sql += ` AND d.year = $3
		ORDER BY c.embedding <=> $1 ASC, c.id ASC LIMIT $4`
		args = append(args, q.Year, fetch)
	} else {
		sql += `
		ORDER BY c.embedding <=> $1 ASC, c.id ASC LIMIT $3`
		args = append(args, fetch)
	}

	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	now := g.now()
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var parentID *uuid.UUID
		var distance float64
		if err := rows.Scan(
			&r.ChunkID, &parentID, &r.Content, &r.ParentContent, &r.ChildIndex,
			&r.AccessLevel, &r.TimeDecayDate, &distance,
			&r.Document.ID, &r.Document.SourceRef, &r.Document.Category,
			&r.Document.MeetingType, &r.Document.Year, &r.Document.Department,
		); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if parentID != nil {
			r.ParentID = *parentID
		} else {
			// A child without a resolvable parent is a data integrity
			// fault: log with identifiers, drop the row, keep the query.
			g.logger.Warn("orphaned child chunk excluded from results",
				zap.String("chunk_id", r.ChunkID.String()),
				zap.String("document_id", r.Document.ID.String()))
			continue
		}

		r.SemanticScore = semanticScore(distance)
		if hybrid {
			r.TimeScore = timeScore(r.TimeDecayDate, now)
			r.FinalScore = hybridScore(r.SemanticScore, r.TimeScore, q.SemanticWeight)
		} else {
			r.FinalScore = r.SemanticScore
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	rankResults(results)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}
