package vectorindex

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/opencouncil/docfind/internal/vectorindex"

// Metrics holds search instrumentation.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	results  metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates a Metrics instance.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"docfind.search.duration_seconds",
		metric.WithDescription("Similarity search duration in seconds, labeled by mode (hybrid, similarity)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.results, err = m.meter.Int64Histogram(
		"docfind.search.results",
		metric.WithDescription("Number of results returned per search, labeled by mode."),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50),
	)
	if err != nil {
		m.logger.Warn("failed to create results histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"docfind.search.errors_total",
		metric.WithDescription("Total search errors by mode."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordSearch records one search invocation.
func (m *Metrics) RecordSearch(ctx context.Context, mode string, duration time.Duration, resultCount int, err error) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.results != nil && err == nil {
		m.results.Record(ctx, int64(resultCount), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
