package fixtures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// RuleBuilder builds test SoD conflict rules
type RuleBuilder struct {
	t    *testing.T
	rule sod.Rule
}

// NewRuleBuilder creates a new RuleBuilder with defaults
func NewRuleBuilder(t *testing.T, roleA, roleB string) *RuleBuilder {
	t.Helper()
	return &RuleBuilder{
		t: t,
		rule: sod.Rule{
			RoleA:             security.RoleID(roleA),
			RoleB:             security.RoleID(roleB),
			Severity:          sod.SeverityHigh,
			Category:          "procure_to_pay",
			EffectiveSeverity: sod.SeverityHigh,
		},
	}
}

// WithSeverity sets both the base and effective severity
func (b *RuleBuilder) WithSeverity(s sod.Severity) *RuleBuilder {
	b.rule.Severity = s
	b.rule.EffectiveSeverity = s
	return b
}

// WithEffectiveSeverity sets an admin override below the base severity
func (b *RuleBuilder) WithEffectiveSeverity(s sod.Severity) *RuleBuilder {
	b.rule.EffectiveSeverity = s
	return b
}

// WithCategory sets the business-process category
func (b *RuleBuilder) WithCategory(category string) *RuleBuilder {
	b.rule.Category = category
	return b
}

// WithSupersedes marks the rule as superseding duplicates of the same pair
func (b *RuleBuilder) WithSupersedes() *RuleBuilder {
	b.rule.Supersedes = true
	return b
}

// Build returns the rule
func (b *RuleBuilder) Build() sod.Rule {
	return b.rule
}

// BuildMatrix builds a conflict matrix from the given rules and fails the
// test on any build error
func BuildMatrix(t *testing.T, rules ...sod.Rule) *sod.Matrix {
	t.Helper()
	m, err := sod.BuildMatrix(rules)
	require.NoError(t, err)
	return m
}
