package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
)

// LedgerRepository persists pattern records and their rollback events. It
// backs the in-memory confidence ledger; the ledger stays authoritative at
// runtime and reloads from here on startup.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// SaveRollback persists a rollback event together with the updated pattern in
// one transaction
func (r *LedgerRepository) SaveRollback(ctx context.Context, event recommendation.RollbackEvent, pattern recommendation.Pattern) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertEvent := `
		INSERT INTO rollback_events (id, algorithm_id, pattern_key, category, confidence_delta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	if _, err := tx.Exec(ctx, insertEvent,
		event.ID, event.AlgorithmID, event.PatternKey,
		event.Category.String(), event.ConfidenceDelta, event.Timestamp); err != nil {
		return fmt.Errorf("inserting rollback event: %w", err)
	}

	if err := upsertPattern(ctx, tx, pattern); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SavePattern upserts a pattern record
func (r *LedgerRepository) SavePattern(ctx context.Context, pattern recommendation.Pattern) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertPattern(ctx, tx, pattern); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func upsertPattern(ctx context.Context, tx pgx.Tx, pattern recommendation.Pattern) error {
	query := `
		INSERT INTO algorithm_patterns (
			algorithm_id, pattern_key, confidence, state,
			evaluated_coverage, accuracy, critical_false_positives,
			approved, logic_version, entered_state_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (algorithm_id, pattern_key) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			state = EXCLUDED.state,
			evaluated_coverage = EXCLUDED.evaluated_coverage,
			accuracy = EXCLUDED.accuracy,
			critical_false_positives = EXCLUDED.critical_false_positives,
			approved = EXCLUDED.approved,
			logic_version = EXCLUDED.logic_version,
			entered_state_at = EXCLUDED.entered_state_at,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		pattern.AlgorithmID, pattern.PatternKey, pattern.Confidence, pattern.State.String(),
		pattern.Stats.EvaluatedCoverage, pattern.Stats.Accuracy, pattern.Stats.CriticalFalsePositives,
		pattern.Approved, pattern.LogicVersion, pattern.EnteredStateAt, pattern.CreatedAt, pattern.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting pattern: %w", err)
	}
	return nil
}

// LoadPatterns loads every persisted pattern with its rollback events
func (r *LedgerRepository) LoadPatterns(ctx context.Context) ([]recommendation.Pattern, error) {
	query := `
		SELECT algorithm_id, pattern_key, confidence, state,
		       evaluated_coverage, accuracy, critical_false_positives,
		       approved, logic_version, entered_state_at, created_at, updated_at
		FROM algorithm_patterns`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	var patterns []recommendation.Pattern
	for rows.Next() {
		var (
			p         recommendation.Pattern
			stateName string
		)
		if err := rows.Scan(
			&p.AlgorithmID, &p.PatternKey, &p.Confidence, &stateName,
			&p.Stats.EvaluatedCoverage, &p.Stats.Accuracy, &p.Stats.CriticalFalsePositives,
			&p.Approved, &p.LogicVersion, &p.EnteredStateAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}

		state, err := recommendation.ParseState(stateName)
		if err != nil {
			return nil, fmt.Errorf("pattern %s/%s: %w", p.AlgorithmID, p.PatternKey, err)
		}
		p.State = state
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range patterns {
		events, err := r.loadEvents(ctx, patterns[i].AlgorithmID, patterns[i].PatternKey)
		if err != nil {
			return nil, err
		}
		patterns[i].Rollbacks = events
	}

	return patterns, nil
}

func (r *LedgerRepository) loadEvents(ctx context.Context, algorithmID, patternKey string) ([]recommendation.RollbackEvent, error) {
	query := `
		SELECT id, category, confidence_delta, occurred_at
		FROM rollback_events
		WHERE algorithm_id = $1 AND pattern_key = $2
		ORDER BY occurred_at`

	rows, err := r.db.Query(ctx, query, algorithmID, patternKey)
	if err != nil {
		return nil, fmt.Errorf("querying rollback events: %w", err)
	}
	defer rows.Close()

	var events []recommendation.RollbackEvent
	for rows.Next() {
		var (
			ev           recommendation.RollbackEvent
			categoryName string
			occurredAt   time.Time
		)
		if err := rows.Scan(&ev.ID, &categoryName, &ev.ConfidenceDelta, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning rollback event: %w", err)
		}

		category, err := recommendation.ParseRollbackCategory(categoryName)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		ev.AlgorithmID = algorithmID
		ev.PatternKey = patternKey
		ev.Category = category
		ev.Timestamp = occurredAt
		events = append(events, ev)
	}

	return events, rows.Err()
}
