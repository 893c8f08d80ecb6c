package confidence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
)

func testConfidenceConfig() config.ConfidenceConfig {
	return config.ConfidenceConfig{
		Window:           90 * 24 * time.Hour,
		BreakerThreshold: 3,
		Deltas: map[string]float64{
			"algorithm_error":    0.20,
			"data_quality":       0.10,
			"business_exception": 0.10,
			"seasonal":           0.15,
			"user_preference":    0.00,
		},
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(testConfidenceConfig(), "1", nil, nil, zap.NewNop())
}

// setClock pins the ledger to a controllable clock and returns the setter
func setClock(l *Ledger, start time.Time) func(time.Time) {
	current := start
	var mu sync.Mutex
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	return func(at time.Time) {
		mu.Lock()
		defer mu.Unlock()
		current = at
	}
}

func TestRecordRollbackDeltaSequence(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	p, err := l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackAlgorithmError)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, p.Confidence, 1e-9)
	assert.Equal(t, recommendation.StateCreated, p.State)

	p, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackAlgorithmError)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, p.Confidence, 1e-9)

	// Third rollback in the window trips the breaker.
	p, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackAlgorithmError)
	require.NoError(t, err)
	assert.InDelta(t, 0.40, p.Confidence, 1e-9)
	assert.Equal(t, recommendation.StateDisabled, p.State)

	// A fourth event keeps lowering confidence but causes no new transition.
	p, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackAlgorithmError)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, p.Confidence, 1e-9)
	assert.Equal(t, recommendation.StateDisabled, p.State)
	assert.Len(t, p.Rollbacks, 4)
}

func TestRecordRollbackCategoryDeltas(t *testing.T) {
	tests := []struct {
		category recommendation.RollbackCategory
		want     float64
	}{
		{recommendation.RollbackAlgorithmError, 0.80},
		{recommendation.RollbackDataQuality, 0.90},
		{recommendation.RollbackBusinessException, 0.90},
		{recommendation.RollbackSeasonal, 0.85},
		{recommendation.RollbackUserPreference, 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			l := newTestLedger(t)
			p, err := l.RecordRollback(context.Background(), "greedy-cover", "p:"+tt.category.String(), tt.category)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p.Confidence, 1e-9)
		})
	}
}

func TestUserPreferenceStillCountsTowardBreaker(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var p recommendation.Pattern
	var err error
	for i := 0; i < 3; i++ {
		p, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackUserPreference)
		require.NoError(t, err)
	}

	// Zero-delta events leave confidence untouched but still trip the breaker.
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Equal(t, recommendation.StateDisabled, p.State)
}

func TestConfidenceClampsAtZero(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var p recommendation.Pattern
	var err error
	for i := 0; i < 7; i++ {
		p, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackAlgorithmError)
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, p.Confidence)
}

func TestRollingWindowPruning(t *testing.T) {
	l := newTestLedger(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	advance := setClock(l, start)
	ctx := context.Background()

	_, err := l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackDataQuality)
	require.NoError(t, err)
	advance(start.Add(24 * time.Hour))
	_, err = l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackDataQuality)
	require.NoError(t, err)

	// 91 days later the first two events have aged out: this third event
	// is the only one in the window, so the breaker stays quiet.
	advance(start.Add(91 * 24 * time.Hour))
	p, err := l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackDataQuality)
	require.NoError(t, err)
	assert.Len(t, p.Rollbacks, 1)
	assert.NotEqual(t, recommendation.StateDisabled, p.State)

	// Confidence deltas are permanent; only the breaker window rolls.
	assert.InDelta(t, 0.70, p.Confidence, 1e-9)
}

func TestGetConfidenceUnknownPattern(t *testing.T) {
	l := newTestLedger(t)
	assert.Equal(t, 1.0, l.GetConfidence(context.Background(), "greedy-cover", "never-seen"))

	_, ok := l.GetPattern(context.Background(), "greedy-cover", "never-seen")
	assert.False(t, ok)
}

func TestRecordRollbackValidation(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.RecordRollback(context.Background(), "", "dept:finance", recommendation.RollbackSeasonal)
	require.Error(t, err)
	_, err = l.RecordRollback(context.Background(), "greedy-cover", "", recommendation.RollbackSeasonal)
	require.Error(t, err)
}

func TestMutateCreatesPattern(t *testing.T) {
	l := newTestLedger(t)

	p, err := l.Mutate(context.Background(), "greedy-cover", "dept:finance", func(p *recommendation.Pattern) error {
		p.Approved = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, p.Approved)
	assert.Equal(t, recommendation.StateCreated, p.State)
	assert.Equal(t, "1", p.LogicVersion)

	got, ok := l.GetPattern(context.Background(), "greedy-cover", "dept:finance")
	require.True(t, ok)
	assert.True(t, got.Approved)
}

func TestMutateErrorLeavesPatternUntouched(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Mutate(ctx, "greedy-cover", "dept:finance", func(p *recommendation.Pattern) error {
		p.Approved = true
		return nil
	})
	require.NoError(t, err)

	_, err = l.Mutate(ctx, "greedy-cover", "dept:finance", func(p *recommendation.Pattern) error {
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, _ := l.GetPattern(ctx, "greedy-cover", "dept:finance")
	assert.True(t, got.Approved)
}

func TestConcurrentRollbacksOnOneKey(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := l.RecordRollback(ctx, "greedy-cover", "dept:finance", recommendation.RollbackUserPreference)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, ok := l.GetPattern(ctx, "greedy-cover", "dept:finance")
	require.True(t, ok)
	assert.Len(t, p.Rollbacks, n)
	assert.Equal(t, recommendation.StateDisabled, p.State)
}

func TestConcurrentRollbacksAcrossKeys(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const keys = 8
	const perKey = 20
	var wg sync.WaitGroup
	wg.Add(keys * perKey)
	for k := 0; k < keys; k++ {
		patternKey := fmt.Sprintf("dept:%d", k)
		for i := 0; i < perKey; i++ {
			go func() {
				defer wg.Done()
				_, err := l.RecordRollback(ctx, "greedy-cover", patternKey, recommendation.RollbackUserPreference)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	// Each key's window carries exactly its own events: entries never share
	// state, and the per-entry locks keep every window complete.
	for k := 0; k < keys; k++ {
		p, ok := l.GetPattern(ctx, "greedy-cover", fmt.Sprintf("dept:%d", k))
		require.True(t, ok)
		assert.Len(t, p.Rollbacks, perKey)
		assert.Equal(t, recommendation.StateDisabled, p.State)
	}
}

func TestForEachVisitsEveryPattern(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Mutate(ctx, "greedy-cover", fmt.Sprintf("p%d", i), func(p *recommendation.Pattern) error { return nil })
		require.NoError(t, err)
	}

	seen := make(map[string]struct{})
	l.ForEach(func(p recommendation.Pattern) {
		seen[p.PatternKey] = struct{}{}
	})
	assert.Len(t, seen, 5)
}
