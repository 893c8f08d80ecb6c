package fixtures

import (
	"testing"
	"time"

	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
)

// PatternBuilder builds test pattern records
type PatternBuilder struct {
	t       *testing.T
	pattern *recommendation.Pattern
}

// NewPatternBuilder creates a new PatternBuilder with defaults
func NewPatternBuilder(t *testing.T) *PatternBuilder {
	t.Helper()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	return &PatternBuilder{
		t:       t,
		pattern: recommendation.NewPattern("greedy-cover", "dept:finance", "1", now),
	}
}

// WithKeys sets the algorithm and pattern identifiers
func (b *PatternBuilder) WithKeys(algorithmID, patternKey string) *PatternBuilder {
	b.pattern.AlgorithmID = algorithmID
	b.pattern.PatternKey = patternKey
	return b
}

// WithState sets the lifecycle state
func (b *PatternBuilder) WithState(state recommendation.State) *PatternBuilder {
	b.pattern.State = state
	return b
}

// WithConfidence sets the confidence score
func (b *PatternBuilder) WithConfidence(confidence float64) *PatternBuilder {
	b.pattern.Confidence = confidence
	return b
}

// WithStats sets the observation statistics
func (b *PatternBuilder) WithStats(stats recommendation.ObservationStats) *PatternBuilder {
	b.pattern.Stats = stats
	return b
}

// WithApproval marks the pattern as manually approved
func (b *PatternBuilder) WithApproval() *PatternBuilder {
	b.pattern.Approved = true
	return b
}

// WithEnteredStateAt sets when the pattern entered its current state
func (b *PatternBuilder) WithEnteredStateAt(at time.Time) *PatternBuilder {
	b.pattern.EnteredStateAt = at
	return b
}

// Build returns the pattern
func (b *PatternBuilder) Build() *recommendation.Pattern {
	return b.pattern
}
