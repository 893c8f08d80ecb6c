package recommendation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	domainrec "github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
	"github.com/accessforge/erp-access-advisor/internal/testutil/fixtures"
)

type stubProvider struct {
	index  *security.Index
	matrix *sod.Matrix
}

func (p *stubProvider) Current() (*security.Index, *sod.Matrix, bool) {
	if p.index == nil {
		return nil, nil, false
	}
	return p.index, p.matrix, true
}

type stubTracker struct {
	state      domainrec.State
	confidence float64
	tracked    []string
}

func (s *stubTracker) Track(ctx context.Context, algorithmID, patternKey string) (domainrec.State, float64, error) {
	s.tracked = append(s.tracked, patternKey)
	return s.state, s.confidence, nil
}

type stubMetrics struct {
	recommendations int
	noCoverage      int
}

func (m *stubMetrics) RecordRecommendation(ctx context.Context, algorithmID string, candidates int, latency time.Duration) {
	m.recommendations++
}

func (m *stubMetrics) RecordNoCoverage(ctx context.Context, algorithmID string) {
	m.noCoverage++
}

func newTestService(t *testing.T, provider SnapshotProvider, tracker PatternTracker, metrics MetricsCollector) Service {
	t.Helper()
	return NewService(provider, newTestRecommender(), tracker, metrics, zap.NewNop(), "greedy-cover", 3, 10)
}

func testSnapshot(t *testing.T) *stubProvider {
	t.Helper()
	return &stubProvider{
		index: fixtures.BuildIndex(t,
			fixtures.SimpleRole(t, "ROLE_A", license.TierOperational, "item_x", "item_y"),
			fixtures.SimpleRole(t, "ROLE_B", license.TierOperational, "item_x"),
		),
		matrix: fixtures.BuildMatrix(t,
			fixtures.NewRuleBuilder(t, "ROLE_A", "ROLE_B").WithSeverity(sod.SeverityHigh).Build(),
		),
	}
}

func TestServiceRecommend(t *testing.T) {
	tracker := &stubTracker{state: domainrec.StateObserving, confidence: 0.9}
	metrics := &stubMetrics{}
	svc := newTestService(t, testSnapshot(t), tracker, metrics)

	result, err := svc.Recommend(context.Background(), RecommendRequest{
		RequiredMenuItems: []security.MenuItemID{"item_x", "item_y"},
		PatternKey:        "dept:finance",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Candidates)
	assert.Equal(t, "greedy-cover", result.AlgorithmID)
	assert.Equal(t, domainrec.StateObserving, result.PatternState)
	assert.Equal(t, 0.9, result.Confidence)
	assert.False(t, result.Actionable, "observing patterns are not actionable")
	assert.NotEmpty(t, result.IndexVersion)
	assert.NotEmpty(t, result.MatrixVersion)
	assert.Equal(t, []string{"dept:finance"}, tracker.tracked)
	assert.Equal(t, 1, metrics.recommendations)
}

func TestServiceRecommendActivePatternIsActionable(t *testing.T) {
	tracker := &stubTracker{state: domainrec.StateActive, confidence: 0.97}
	svc := newTestService(t, testSnapshot(t), tracker, &stubMetrics{})

	result, err := svc.Recommend(context.Background(), RecommendRequest{
		RequiredMenuItems: []security.MenuItemID{"item_x"},
		PatternKey:        "dept:finance",
	})
	require.NoError(t, err)
	assert.True(t, result.Actionable)
}

func TestServiceRecommendWithoutPatternKey(t *testing.T) {
	tracker := &stubTracker{state: domainrec.StateActive, confidence: 0.5}
	svc := newTestService(t, testSnapshot(t), tracker, &stubMetrics{})

	result, err := svc.Recommend(context.Background(), RecommendRequest{
		RequiredMenuItems: []security.MenuItemID{"item_x"},
	})
	require.NoError(t, err)

	// No pattern key: nothing is tracked, result carries neutral defaults.
	assert.Empty(t, tracker.tracked)
	assert.Equal(t, domainrec.StateObserving, result.PatternState)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestServiceRecommendSnapshotNotReady(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubTracker{}, &stubMetrics{})

	_, err := svc.Recommend(context.Background(), RecommendRequest{
		RequiredMenuItems: []security.MenuItemID{"item_x"},
	})
	require.ErrorIs(t, err, domainErrors.ErrSnapshotNotReady)
}

func TestServiceRecommendNoCoverageMetric(t *testing.T) {
	metrics := &stubMetrics{}
	svc := newTestService(t, testSnapshot(t), &stubTracker{}, metrics)

	_, err := svc.Recommend(context.Background(), RecommendRequest{
		RequiredMenuItems: []security.MenuItemID{"item_w"},
	})
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "NO_COVERAGE_FOUND"))
	assert.Equal(t, 1, metrics.noCoverage)
	assert.Equal(t, 0, metrics.recommendations)
}

func TestServiceRecommendRequiredItemLimit(t *testing.T) {
	svc := newTestService(t, testSnapshot(t), &stubTracker{}, &stubMetrics{})

	oversized := make([]security.MenuItemID, 11)
	for i := range oversized {
		oversized[i] = security.MenuItemID(fmt.Sprintf("item_%d", i))
	}

	_, err := svc.Recommend(context.Background(), RecommendRequest{RequiredMenuItems: oversized})
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, "TOO_MANY_REQUIRED_ITEMS"))
}

func TestServiceCheckRoles(t *testing.T) {
	svc := newTestService(t, testSnapshot(t), &stubTracker{}, &stubMetrics{})

	conflicts, err := svc.CheckRoles(context.Background(), []security.RoleID{"ROLE_A", "ROLE_B"})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, sod.SeverityHigh, conflicts[0].EffectiveSeverity)

	clean, err := svc.CheckRoles(context.Background(), []security.RoleID{"ROLE_A"})
	require.NoError(t, err)
	assert.Empty(t, clean)
}
