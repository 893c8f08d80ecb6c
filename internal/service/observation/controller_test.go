package observation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
	"github.com/accessforge/erp-access-advisor/internal/service/confidence"
)

const (
	testAlgorithm = "greedy-cover"
	testPattern   = "dept:finance"
)

// newTestController uses a zero-day observation window so guard-gated
// transitions can fire immediately; tests of the window guard override it.
func newTestController(t *testing.T, obsCfg config.ObservationConfig) (*Controller, *confidence.Ledger) {
	t.Helper()
	ledger := confidence.NewLedger(config.ConfidenceConfig{
		Window:           90 * 24 * time.Hour,
		BreakerThreshold: 3,
		Deltas:           map[string]float64{"algorithm_error": 0.20},
	}, "1", nil, nil, zap.NewNop())
	return NewController(ledger, obsCfg, zap.NewNop()), ledger
}

func openGuards() config.ObservationConfig {
	return config.ObservationConfig{
		MinObservationDays: 0,
		MinCoverage:        0.80,
		AccuracyThreshold:  0.95,
	}
}

func TestTrackMovesNewPatternIntoObservation(t *testing.T) {
	c, _ := newTestController(t, openGuards())

	state, conf, err := c.Track(context.Background(), testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, state)
	assert.Equal(t, 1.0, conf)

	// A second track leaves an established pattern untouched.
	state, _, err = c.Track(context.Background(), testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, state)
}

func TestHappyPathToActive(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)

	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage:      0.90,
		Accuracy:               0.97,
		CriticalFalsePositives: 0,
	})
	require.NoError(t, err)

	p, err := c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateValidationReview, p.State)

	// Perfect numbers without reviewer approval still wait.
	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventValidationPassed)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "GUARD_NOT_SATISFIED"))

	_, err = c.Approve(ctx, testAlgorithm, testPattern, true)
	require.NoError(t, err)

	p, err = c.Fire(ctx, testAlgorithm, testPattern, EventValidationPassed)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateActive, p.State)
}

func TestObservationWindowGuard(t *testing.T) {
	cfg := openGuards()
	cfg.MinObservationDays = 30
	c, _ := newTestController(t, cfg)
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage: 0.95,
		Accuracy:          0.99,
	})
	require.NoError(t, err)

	// The pattern entered observation moments ago: the 30-day window guard
	// must reject completion.
	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "GUARD_NOT_SATISFIED"))
}

func TestCoverageGuard(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage: 0.50,
		Accuracy:          0.99,
	})
	require.NoError(t, err)

	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "GUARD_NOT_SATISFIED"))
}

func TestValidationFailureReturnsToObserving(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage: 0.90,
		Accuracy:          0.70,
	})
	require.NoError(t, err)
	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.NoError(t, err)

	p, err := c.Fire(ctx, testAlgorithm, testPattern, EventValidationFailed)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, p.State)
	// A fresh observation cycle starts with clean measurements.
	assert.Equal(t, recommendation.ObservationStats{}, p.Stats)
}

func TestCriticalFalsePositivesBlockActivation(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage:      0.90,
		Accuracy:               0.99,
		CriticalFalsePositives: 1,
	})
	require.NoError(t, err)
	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.NoError(t, err)
	_, err = c.Approve(ctx, testAlgorithm, testPattern, true)
	require.NoError(t, err)

	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventValidationPassed)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "GUARD_NOT_SATISFIED"))
}

func TestInvalidTransition(t *testing.T) {
	c, _ := newTestController(t, openGuards())

	// A brand-new pattern cannot pass validation it never entered.
	_, err := c.Fire(context.Background(), testAlgorithm, testPattern, EventValidationPassed)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestDisableAndReenable(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)

	p, err := c.Disable(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateDisabled, p.State)

	// Disabling twice is allowed and stays put.
	p, err = c.Disable(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateDisabled, p.State)

	// Re-enabling starts a full new observation cycle, never jumps to active.
	p, err = c.Reenable(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, p.State)
}

func TestBreakerDisablesThroughLedger(t *testing.T) {
	c, ledger := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := ledger.RecordRollback(ctx, testAlgorithm, testPattern, recommendation.RollbackAlgorithmError)
		require.NoError(t, err)
	}

	state, conf, known := c.PatternState(ctx, testAlgorithm, testPattern)
	assert.True(t, known)
	assert.Equal(t, recommendation.StateDisabled, state)
	assert.InDelta(t, 0.40, conf, 1e-9)

	// The standard re-enable path applies after a breaker trip too.
	p, err := c.Reenable(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, p.State)
}

func TestEvaluateAutoAdvances(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage: 0.90,
		Accuracy:          0.97,
	})
	require.NoError(t, err)
	_, err = c.Approve(ctx, testAlgorithm, testPattern, true)
	require.NoError(t, err)

	p, err := c.Evaluate(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateValidationReview, p.State)

	p, err = c.Evaluate(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateActive, p.State)
}

func TestEvaluateFailsReviewOnLowAccuracy(t *testing.T) {
	c, _ := newTestController(t, openGuards())
	ctx := context.Background()

	_, _, err := c.Track(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	_, err = c.ReportObservation(ctx, testAlgorithm, testPattern, recommendation.ObservationStats{
		EvaluatedCoverage: 0.90,
		Accuracy:          0.60,
	})
	require.NoError(t, err)
	_, err = c.Fire(ctx, testAlgorithm, testPattern, EventObservationComplete)
	require.NoError(t, err)

	p, err := c.Evaluate(ctx, testAlgorithm, testPattern)
	require.NoError(t, err)
	assert.Equal(t, recommendation.StateObserving, p.State)
}

func TestUpdateLogicVersionDemotesActivePatterns(t *testing.T) {
	c, ledger := newTestController(t, openGuards())
	ctx := context.Background()

	activate := func(key string) {
		_, _, err := c.Track(ctx, testAlgorithm, key)
		require.NoError(t, err)
		_, err = c.ReportObservation(ctx, testAlgorithm, key, recommendation.ObservationStats{
			EvaluatedCoverage: 0.90,
			Accuracy:          0.97,
		})
		require.NoError(t, err)
		_, err = c.Fire(ctx, testAlgorithm, key, EventObservationComplete)
		require.NoError(t, err)
		_, err = c.Approve(ctx, testAlgorithm, key, true)
		require.NoError(t, err)
		_, err = c.Fire(ctx, testAlgorithm, key, EventValidationPassed)
		require.NoError(t, err)
	}

	activate("dept:finance")
	_, _, err := c.Track(ctx, testAlgorithm, "dept:hr")
	require.NoError(t, err)

	require.NoError(t, c.UpdateLogicVersion(ctx, testAlgorithm, "2"))

	active, _ := ledger.GetPattern(ctx, testAlgorithm, "dept:finance")
	assert.Equal(t, recommendation.StateObserving, active.State)
	assert.Equal(t, "2", active.LogicVersion)

	// Patterns that were not active keep their state, only the version moves.
	observing, _ := ledger.GetPattern(ctx, testAlgorithm, "dept:hr")
	assert.Equal(t, recommendation.StateObserving, observing.State)
	assert.Equal(t, "2", observing.LogicVersion)
}

func TestPatternStateUnknown(t *testing.T) {
	c, _ := newTestController(t, openGuards())

	state, conf, known := c.PatternState(context.Background(), testAlgorithm, "never-seen")
	assert.False(t, known)
	assert.Equal(t, recommendation.StateCreated, state)
	assert.Equal(t, 1.0, conf)
}
