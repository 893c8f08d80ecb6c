package observation

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
	"github.com/accessforge/erp-access-advisor/internal/service/confidence"
)

// Event is a pattern lifecycle trigger
type Event int

const (
	EventRecommendationIssued Event = iota
	EventObservationComplete
	EventValidationPassed
	EventValidationFailed
	EventLogicVersionChanged
	EventManualDisable
	EventReenable
)

func (e Event) String() string {
	switch e {
	case EventRecommendationIssued:
		return "recommendation_issued"
	case EventObservationComplete:
		return "observation_complete"
	case EventValidationPassed:
		return "validation_passed"
	case EventValidationFailed:
		return "validation_failed"
	case EventLogicVersionChanged:
		return "logic_version_changed"
	case EventManualDisable:
		return "manual_disable"
	case EventReenable:
		return "reenable"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from  recommendation.State
	event Event
}

// transitions is the explicit state machine table. Anything not listed here
// is an invalid transition and fails loudly; the circuit breaker path lives
// in the confidence ledger, which disables a pattern directly regardless of
// its current state.
var transitions = map[transitionKey]recommendation.State{
	{recommendation.StateCreated, EventRecommendationIssued}:      recommendation.StateObserving,
	{recommendation.StateObserving, EventObservationComplete}:     recommendation.StateValidationReview,
	{recommendation.StateValidationReview, EventValidationPassed}: recommendation.StateActive,
	{recommendation.StateValidationReview, EventValidationFailed}: recommendation.StateObserving,
	{recommendation.StateActive, EventLogicVersionChanged}:        recommendation.StateObserving,
	{recommendation.StateCreated, EventManualDisable}:             recommendation.StateDisabled,
	{recommendation.StateObserving, EventManualDisable}:           recommendation.StateDisabled,
	{recommendation.StateValidationReview, EventManualDisable}:    recommendation.StateDisabled,
	{recommendation.StateActive, EventManualDisable}:              recommendation.StateDisabled,
	{recommendation.StateDisabled, EventManualDisable}:            recommendation.StateDisabled,
	{recommendation.StateDisabled, EventReenable}:                 recommendation.StateObserving,
}

// Controller governs whether a pattern's recommendations may be surfaced as
// actionable. It owns no state of its own: every pattern record lives in the
// confidence ledger, and all transitions run through the ledger's per-key
// serialized Mutate.
type Controller struct {
	ledger *confidence.Ledger
	cfg    config.ObservationConfig
	logger *zap.Logger
}

// NewController creates the pattern lifecycle controller
func NewController(ledger *confidence.Ledger, cfg config.ObservationConfig, logger *zap.Logger) *Controller {
	return &Controller{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Track registers that a recommendation of the pattern was issued. A pattern
// seen for the first time moves automatically into observation; established
// patterns are left untouched. Implements the recommender's PatternTracker.
func (c *Controller) Track(ctx context.Context, algorithmID, patternKey string) (recommendation.State, float64, error) {
	p, err := c.ledger.Mutate(ctx, algorithmID, patternKey, func(p *recommendation.Pattern) error {
		if p.State == recommendation.StateCreated {
			return c.apply(p, EventRecommendationIssued)
		}
		return nil
	})
	if err != nil {
		return recommendation.StateCreated, 0, err
	}
	return p.State, p.Confidence, nil
}

// Fire drives one explicit lifecycle event through the transition table.
// Events fired in a state that does not accept them fail with
// InvalidTransition; events whose guard is not satisfied fail with
// GUARD_NOT_SATISFIED.
func (c *Controller) Fire(ctx context.Context, algorithmID, patternKey string, event Event) (recommendation.Pattern, error) {
	p, err := c.ledger.Mutate(ctx, algorithmID, patternKey, func(p *recommendation.Pattern) error {
		return c.apply(p, event)
	})
	if err != nil {
		return recommendation.Pattern{}, err
	}

	c.logger.Info("pattern transition",
		zap.String("algorithm_id", algorithmID),
		zap.String("pattern_key", patternKey),
		zap.String("event", event.String()),
		zap.String("state", p.State.String()))
	return p, nil
}

func (c *Controller) apply(p *recommendation.Pattern, event Event) error {
	next, ok := transitions[transitionKey{p.State, event}]
	if !ok {
		return domainErrors.NewInvalidTransitionError(p.State.String(), event.String())
	}

	if err := c.checkGuard(p, event); err != nil {
		return err
	}

	now := c.ledger.Now()
	p.State = next
	p.EnteredStateAt = now
	if next == recommendation.StateObserving {
		// A fresh observation window measures from scratch.
		p.Stats = recommendation.ObservationStats{}
	}
	return nil
}

// checkGuard enforces the transition guards. All guard inputs are externally
// reported measurements held on the pattern record.
func (c *Controller) checkGuard(p *recommendation.Pattern, event Event) error {
	switch event {
	case EventObservationComplete:
		elapsed := c.ledger.Now().Sub(p.EnteredStateAt)
		minElapsed := time.Duration(c.cfg.MinObservationDays) * 24 * time.Hour
		if elapsed < minElapsed {
			return guardError("observation window has not elapsed")
		}
		if p.Stats.EvaluatedCoverage < c.cfg.MinCoverage {
			return guardError("evaluated-user coverage below minimum")
		}
	case EventValidationPassed:
		// Accuracy, zero critical false positives, and explicit approval
		// are all required; perfect accuracy without approval still waits.
		if p.Stats.Accuracy < c.cfg.AccuracyThreshold {
			return guardError("measured accuracy below threshold")
		}
		if p.Stats.CriticalFalsePositives > 0 {
			return guardError("critical-impact false positives observed")
		}
		if !p.Approved {
			return guardError("reviewer approval is missing")
		}
	case EventValidationFailed:
		if p.Stats.Accuracy >= c.cfg.AccuracyThreshold {
			return guardError("accuracy meets threshold, validation has not failed")
		}
	}
	return nil
}

func guardError(reason string) error {
	return domainErrors.NewBusinessError("GUARD_NOT_SATISFIED", reason)
}

// Evaluate advances the pattern if any guard-gated transition currently
// applies: an observing pattern whose window and coverage guards pass moves
// to validation review, and a pattern under review either activates or falls
// back to observing based on measured accuracy. Patterns with nothing to do
// are returned unchanged.
func (c *Controller) Evaluate(ctx context.Context, algorithmID, patternKey string) (recommendation.Pattern, error) {
	return c.ledger.Mutate(ctx, algorithmID, patternKey, func(p *recommendation.Pattern) error {
		switch p.State {
		case recommendation.StateObserving:
			if err := c.apply(p, EventObservationComplete); err != nil {
				if domainErrors.IsCode(err, "GUARD_NOT_SATISFIED") {
					return nil
				}
				return err
			}
		case recommendation.StateValidationReview:
			if p.Stats.Accuracy < c.cfg.AccuracyThreshold {
				return c.apply(p, EventValidationFailed)
			}
			if err := c.apply(p, EventValidationPassed); err != nil {
				if domainErrors.IsCode(err, "GUARD_NOT_SATISFIED") {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// ReportObservation stores externally measured observation statistics for the
// pattern
func (c *Controller) ReportObservation(ctx context.Context, algorithmID, patternKey string, stats recommendation.ObservationStats) (recommendation.Pattern, error) {
	return c.ledger.Mutate(ctx, algorithmID, patternKey, func(p *recommendation.Pattern) error {
		p.Stats = stats
		return nil
	})
}

// Approve sets the external reviewer approval flag
func (c *Controller) Approve(ctx context.Context, algorithmID, patternKey string, approved bool) (recommendation.Pattern, error) {
	return c.ledger.Mutate(ctx, algorithmID, patternKey, func(p *recommendation.Pattern) error {
		p.Approved = approved
		return nil
	})
}

// Disable takes the pattern out of service by explicit external action. A
// disabled pattern needs a full new observing cycle to come back.
func (c *Controller) Disable(ctx context.Context, algorithmID, patternKey string) (recommendation.Pattern, error) {
	return c.Fire(ctx, algorithmID, patternKey, EventManualDisable)
}

// Reenable starts a new observing cycle for a disabled pattern
func (c *Controller) Reenable(ctx context.Context, algorithmID, patternKey string) (recommendation.Pattern, error) {
	return c.Fire(ctx, algorithmID, patternKey, EventReenable)
}

// UpdateLogicVersion records a new algorithm logic version and demotes every
// active pattern of that algorithm back to observing
func (c *Controller) UpdateLogicVersion(ctx context.Context, algorithmID, version string) error {
	var firstErr error
	c.ledger.ForEach(func(p recommendation.Pattern) {
		if p.AlgorithmID != algorithmID || p.LogicVersion == version {
			return
		}
		_, err := c.ledger.Mutate(ctx, p.AlgorithmID, p.PatternKey, func(p *recommendation.Pattern) error {
			p.LogicVersion = version
			if p.State == recommendation.StateActive {
				return c.apply(p, EventLogicVersionChanged)
			}
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// PatternState reports the pattern's lifecycle state and confidence for UI
// and report layers. Unknown patterns report as created with full optimistic
// confidence.
func (c *Controller) PatternState(ctx context.Context, algorithmID, patternKey string) (recommendation.State, float64, bool) {
	p, ok := c.ledger.GetPattern(ctx, algorithmID, patternKey)
	if !ok {
		return recommendation.StateCreated, 1.0, false
	}
	return p.State, p.Confidence, true
}
