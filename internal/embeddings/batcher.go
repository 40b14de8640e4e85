package embeddings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Item is one chunk awaiting a vector.
type Item struct {
	ID   uuid.UUID
	Text string
}

// BatchResult reports a batched embedding run. Failed batches are isolated:
// their chunk ids are reported rather than silently dropped, and sibling
// batches proceed.
type BatchResult struct {
	IDs       []uuid.UUID
	Vectors   [][]float32
	FailedIDs []uuid.UUID
	Errors    []error
}

// Batcher embeds items in fixed-size batches under a rate limit.
type Batcher struct {
	provider Provider
	limiter  *rate.Limiter
	size     int
	logger   *zap.Logger
	metrics  *Metrics
}

// NewBatcher creates a Batcher. batchSize defaults to 32; requestsPerSecond
// zero disables rate limiting.
func NewBatcher(provider Provider, batchSize int, requestsPerSecond float64, logger *zap.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = 32
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		size:     batchSize,
		logger:   logger,
		metrics:  NewMetrics(logger),
	}
}

// EmbedAll embeds every item, batch by batch. A batch failure records the
// batch's ids and error and moves on; context cancellation stops the run.
func (b *Batcher) EmbedAll(ctx context.Context, items []Item) (*BatchResult, error) {
	result := &BatchResult{}

	for start := 0; start < len(items); start += b.size {
		end := start + b.size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if err := b.limiter.Wait(ctx); err != nil {
			return result, err
		}

		texts := make([]string, len(batch))
		ids := make([]uuid.UUID, len(batch))
		for i, item := range batch {
			texts[i] = item.Text
			ids[i] = item.ID
		}

		startedAt := time.Now()
		vectors, err := b.provider.EmbedDocuments(ctx, texts)
		b.metrics.RecordRequest(ctx, "batch", time.Since(startedAt), len(batch), err)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			b.logger.Warn("embedding batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			result.FailedIDs = append(result.FailedIDs, ids...)
			result.Errors = append(result.Errors, err)
			continue
		}

		result.IDs = append(result.IDs, ids...)
		result.Vectors = append(result.Vectors, vectors...)
	}
	return result, nil
}
