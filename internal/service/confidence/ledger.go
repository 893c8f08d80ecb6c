package confidence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
)

// Store is the optional persistence boundary behind the ledger. The in-memory
// state stays authoritative: persistence failures are logged, never surfaced,
// because ledger writes must not fail on valid input.
type Store interface {
	// SaveRollback persists a rollback event together with the updated pattern
	SaveRollback(ctx context.Context, event recommendation.RollbackEvent, pattern recommendation.Pattern) error
	// SavePattern upserts a pattern record
	SavePattern(ctx context.Context, pattern recommendation.Pattern) error
	// LoadPatterns loads all persisted pattern records
	LoadPatterns(ctx context.Context) ([]recommendation.Pattern, error)
}

// MetricsCollector defines the interface for ledger metrics
type MetricsCollector interface {
	// RecordRollback records one rollback event by category
	RecordRollback(ctx context.Context, algorithmID, category string)
	// RecordBreakerTrip records a circuit breaker disabling a pattern
	RecordBreakerTrip(ctx context.Context, algorithmID string)
}

type key struct {
	algorithmID string
	patternKey  string
}

// entry wraps one pattern with its own lock: updates to the same
// (algorithmID, patternKey) are serialized, updates to different keys never
// block each other.
type entry struct {
	mu      sync.Mutex
	pattern *recommendation.Pattern
}

// Ledger is the single piece of mutable shared state in the engine: per
// (algorithm, pattern) confidence scores and rollback history, plus the
// circuit breaker that disables a pattern after repeated confirmed errors.
type Ledger struct {
	cfg          config.ConfidenceConfig
	logicVersion string
	store        Store
	metrics      MetricsCollector
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.RWMutex
	entries map[key]*entry
}

// NewLedger creates an empty ledger
func NewLedger(cfg config.ConfidenceConfig, logicVersion string, store Store, metrics MetricsCollector, logger *zap.Logger) *Ledger {
	return &Ledger{
		cfg:          cfg,
		logicVersion: logicVersion,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		entries:      make(map[key]*entry),
	}
}

// LoadFromStore seeds the ledger from persisted pattern records at startup
func (l *Ledger) LoadFromStore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	patterns, err := l.store.LoadPatterns(ctx)
	if err != nil {
		return domainErrors.Wrap(err, "loading patterns")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range patterns {
		p := patterns[i].Clone()
		l.entries[key{p.AlgorithmID, p.PatternKey}] = &entry{pattern: &p}
	}

	l.logger.Info("confidence ledger loaded", zap.Int("patterns", len(patterns)))
	return nil
}

// RecordRollback applies a category-specific confidence penalty, appends the
// event to the pattern's rolling window, and trips the circuit breaker once
// the window holds the configured number of events. Events past the threshold
// update confidence and history but cause no further transition.
func (l *Ledger) RecordRollback(ctx context.Context, algorithmID, patternKey string, category recommendation.RollbackCategory) (recommendation.Pattern, error) {
	if algorithmID == "" || patternKey == "" {
		return recommendation.Pattern{}, domainErrors.NewValidationError("INVALID_ROLLBACK",
			"rollback requires algorithm id and pattern key")
	}

	e := l.getOrCreate(algorithmID, patternKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	p := e.pattern
	l.prune(p, now)

	delta := l.cfg.Deltas[category.String()]
	event := recommendation.RollbackEvent{
		ID:              uuid.New(),
		AlgorithmID:     algorithmID,
		PatternKey:      patternKey,
		Category:        category,
		Timestamp:       now,
		ConfidenceDelta: -delta,
	}

	p.Confidence = clamp01(p.Confidence - delta)
	p.Rollbacks = append(p.Rollbacks, event)
	p.UpdatedAt = now

	if l.metrics != nil {
		l.metrics.RecordRollback(ctx, algorithmID, category.String())
	}

	if len(p.Rollbacks) >= l.cfg.BreakerThreshold && p.State != recommendation.StateDisabled {
		p.State = recommendation.StateDisabled
		p.EnteredStateAt = now
		if l.metrics != nil {
			l.metrics.RecordBreakerTrip(ctx, algorithmID)
		}
		l.logger.Warn("circuit breaker tripped",
			zap.String("algorithm_id", algorithmID),
			zap.String("pattern_key", patternKey),
			zap.Int("rollbacks_in_window", len(p.Rollbacks)),
			zap.Float64("confidence", p.Confidence))
	}

	if l.store != nil {
		if err := l.store.SaveRollback(ctx, event, p.Clone()); err != nil {
			l.logger.Error("persisting rollback failed",
				zap.String("algorithm_id", algorithmID),
				zap.String("pattern_key", patternKey),
				zap.Error(err))
		}
	}

	return p.Clone(), nil
}

// GetConfidence returns the pattern's confidence, or the optimistic 1.0
// default for a pattern no evidence has touched yet
func (l *Ledger) GetConfidence(ctx context.Context, algorithmID, patternKey string) float64 {
	l.mu.RLock()
	e, ok := l.entries[key{algorithmID, patternKey}]
	l.mu.RUnlock()
	if !ok {
		return 1.0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pattern.Confidence
}

// GetPattern returns a copy of the pattern record, pruning the rolling window
// on the way out
func (l *Ledger) GetPattern(ctx context.Context, algorithmID, patternKey string) (recommendation.Pattern, bool) {
	l.mu.RLock()
	e, ok := l.entries[key{algorithmID, patternKey}]
	l.mu.RUnlock()
	if !ok {
		return recommendation.Pattern{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	l.prune(e.pattern, l.now())
	return e.pattern.Clone(), true
}

// Mutate runs a serialized read-modify-write against one pattern, creating
// the record if it does not exist. The observation controller drives all its
// transitions through here so state changes and rollback accounting share one
// lock per key.
func (l *Ledger) Mutate(ctx context.Context, algorithmID, patternKey string, fn func(p *recommendation.Pattern) error) (recommendation.Pattern, error) {
	e := l.getOrCreate(algorithmID, patternKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	l.prune(e.pattern, now)

	if err := fn(e.pattern); err != nil {
		return recommendation.Pattern{}, err
	}
	e.pattern.UpdatedAt = now

	if l.store != nil {
		if err := l.store.SavePattern(ctx, e.pattern.Clone()); err != nil {
			l.logger.Error("persisting pattern failed",
				zap.String("algorithm_id", algorithmID),
				zap.String("pattern_key", patternKey),
				zap.Error(err))
		}
	}

	return e.pattern.Clone(), nil
}

// ForEach calls fn with a copy of every pattern. Iteration takes no global
// write lock; each entry is locked individually.
func (l *Ledger) ForEach(fn func(p recommendation.Pattern)) {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		p := e.pattern.Clone()
		e.mu.Unlock()
		fn(p)
	}
}

// Now returns the ledger's current time (injectable in tests)
func (l *Ledger) Now() time.Time {
	return l.now()
}

func (l *Ledger) getOrCreate(algorithmID, patternKey string) *entry {
	k := key{algorithmID, patternKey}

	l.mu.RLock()
	e, ok := l.entries[k]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[k]; ok {
		return e
	}
	e = &entry{pattern: recommendation.NewPattern(algorithmID, patternKey, l.logicVersion, l.now())}
	l.entries[k] = e
	return e
}

// prune drops rollback events older than the rolling window. Called lazily
// under the entry lock on every access, never proactively.
func (l *Ledger) prune(p *recommendation.Pattern, now time.Time) {
	if len(p.Rollbacks) == 0 {
		return
	}
	cutoff := now.Add(-l.cfg.Window)
	kept := p.Rollbacks[:0]
	for _, ev := range p.Rollbacks {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	p.Rollbacks = kept
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
