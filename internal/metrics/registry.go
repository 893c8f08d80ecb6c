package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all engine metrics. It satisfies the collector interfaces of
// the recommendation and confidence services.
type Registry struct {
	meter metric.Meter

	// Recommendation metrics
	RecommendationDuration metric.Float64Histogram
	RecommendationCounter  metric.Int64Counter
	CandidatesPerRequest   metric.Int64Histogram
	NoCoverageCounter      metric.Int64Counter

	// Confidence metrics
	RollbackCounter    metric.Int64Counter
	BreakerTripCounter metric.Int64Counter

	// Snapshot metrics
	RebuildCounter        metric.Int64Counter
	RebuildFailureCounter metric.Int64Counter
}

// NewRegistry creates a metrics registry on the named meter
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	r.RecommendationDuration, err = meter.Float64Histogram(
		"advisor.recommendation.duration",
		metric.WithDescription("Recommendation request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	r.RecommendationCounter, err = meter.Int64Counter(
		"advisor.recommendation.requests",
		metric.WithDescription("Completed recommendation requests"),
	)
	if err != nil {
		return nil, err
	}

	r.CandidatesPerRequest, err = meter.Int64Histogram(
		"advisor.recommendation.candidates",
		metric.WithDescription("Candidates returned per request"),
	)
	if err != nil {
		return nil, err
	}

	r.NoCoverageCounter, err = meter.Int64Counter(
		"advisor.recommendation.no_coverage",
		metric.WithDescription("Requests rejected because required items had no covering role"),
	)
	if err != nil {
		return nil, err
	}

	r.RollbackCounter, err = meter.Int64Counter(
		"advisor.confidence.rollbacks",
		metric.WithDescription("Rollback events recorded, by category"),
	)
	if err != nil {
		return nil, err
	}

	r.BreakerTripCounter, err = meter.Int64Counter(
		"advisor.confidence.breaker_trips",
		metric.WithDescription("Circuit breaker trips disabling a pattern"),
	)
	if err != nil {
		return nil, err
	}

	r.RebuildCounter, err = meter.Int64Counter(
		"advisor.snapshot.rebuilds",
		metric.WithDescription("Snapshot pair rebuilds published"),
	)
	if err != nil {
		return nil, err
	}

	r.RebuildFailureCounter, err = meter.Int64Counter(
		"advisor.snapshot.rebuild_failures",
		metric.WithDescription("Snapshot rebuilds that kept the previous pair"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordRecommendation records one completed recommendation request
func (r *Registry) RecordRecommendation(ctx context.Context, algorithmID string, candidates int, latency time.Duration) {
	attrs := metric.WithAttributes(attribute.String("algorithm_id", algorithmID))
	r.RecommendationCounter.Add(ctx, 1, attrs)
	r.CandidatesPerRequest.Record(ctx, int64(candidates), attrs)
	r.RecommendationDuration.Record(ctx, float64(latency.Microseconds())/1000.0, attrs)
}

// RecordNoCoverage records a request rejected for uncoverable items
func (r *Registry) RecordNoCoverage(ctx context.Context, algorithmID string) {
	r.NoCoverageCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("algorithm_id", algorithmID)))
}

// RecordRollback records one rollback event by category
func (r *Registry) RecordRollback(ctx context.Context, algorithmID, category string) {
	r.RollbackCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("algorithm_id", algorithmID),
		attribute.String("category", category),
	))
}

// RecordBreakerTrip records a circuit breaker disabling a pattern
func (r *Registry) RecordBreakerTrip(ctx context.Context, algorithmID string) {
	r.BreakerTripCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("algorithm_id", algorithmID)))
}

// RecordRebuild records a snapshot rebuild outcome
func (r *Registry) RecordRebuild(ctx context.Context, ok bool) {
	if ok {
		r.RebuildCounter.Add(ctx, 1)
		return
	}
	r.RebuildFailureCounter.Add(ctx, 1)
}
