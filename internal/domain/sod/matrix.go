package sod

import (
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
)

// Matrix is an immutable snapshot of the Segregation-of-Duties rule set with
// an O(1) unordered-pair index. Like the security index, it is constructed
// fully before publish and never mutated afterwards.
type Matrix struct {
	version   uuid.UUID
	builtAt   time.Time
	rules     []Rule
	pairIndex map[PairKey]Rule
}

// BuildMatrix normalizes each rule's role pair to a canonical unordered key.
// Two rules targeting the same pair are rejected with DuplicateConflictRule
// unless they are identical or exactly one is marked as superseding; an
// ambiguous configuration is a build-time failure, never resolved silently.
func BuildMatrix(rules []Rule) (*Matrix, error) {
	pairIndex := make(map[PairKey]Rule, len(rules))

	for _, rule := range rules {
		if rule.RoleA == "" || rule.RoleB == "" {
			return nil, domainErrors.NewValidationError("INVALID_CONFLICT_RULE",
				"conflict rule is missing a role id")
		}
		if rule.RoleA == rule.RoleB {
			return nil, domainErrors.NewValidationError("INVALID_CONFLICT_RULE",
				"conflict rule cannot pair a role with itself")
		}
		if rule.EffectiveSeverity > rule.Severity {
			return nil, domainErrors.NewValidationError("INVALID_CONFLICT_RULE",
				"effective severity cannot exceed configured severity")
		}

		key := rule.Pair()
		existing, ok := pairIndex[key]
		if !ok {
			pairIndex[key] = rule
			continue
		}

		switch {
		case sameRule(existing, rule):
			// idempotent duplicate row
		case rule.Supersedes && !existing.Supersedes:
			pairIndex[key] = rule
		case existing.Supersedes && !rule.Supersedes:
			// keep existing
		default:
			return nil, domainErrors.NewDuplicateConflictRuleError(string(key.Low), string(key.High))
		}
	}

	normalized := make([]Rule, 0, len(pairIndex))
	for _, rule := range pairIndex {
		normalized = append(normalized, rule)
	}
	sort.Slice(normalized, func(i, j int) bool {
		pi, pj := normalized[i].Pair(), normalized[j].Pair()
		if pi.Low != pj.Low {
			return pi.Low < pj.Low
		}
		return pi.High < pj.High
	})

	return &Matrix{
		version:   uuid.New(),
		builtAt:   time.Now().UTC(),
		rules:     normalized,
		pairIndex: pairIndex,
	}, nil
}

func sameRule(a, b Rule) bool {
	return a.Pair() == b.Pair() &&
		a.Severity == b.Severity &&
		a.Category == b.Category &&
		a.EffectiveSeverity == b.EffectiveSeverity &&
		a.Supersedes == b.Supersedes
}

// Version returns the snapshot version id
func (m *Matrix) Version() uuid.UUID {
	return m.version
}

// BuiltAt returns the snapshot build time
func (m *Matrix) BuiltAt() time.Time {
	return m.builtAt
}

// RuleCount returns the number of normalized rules
func (m *Matrix) RuleCount() int {
	return len(m.rules)
}

// Rules returns the normalized rule list in canonical pair order. The slice
// is shared and must not be mutated.
func (m *Matrix) Rules() []Rule {
	return m.rules
}

// CheckPair looks up the rule for an unordered role pair. Argument order
// never affects the result.
func (m *Matrix) CheckPair(a, b security.RoleID) (Rule, bool) {
	rule, ok := m.pairIndex[NewPairKey(a, b)]
	return rule, ok
}

// CheckSet evaluates every pair in a candidate role set and returns all
// matching rules, not just the first: one set can trigger several independent
// conflicts. O(n²) over the set, fine for realistic sizes (tens of roles).
func (m *Matrix) CheckSet(roles []security.RoleID) []Rule {
	distinct := make([]security.RoleID, 0, len(roles))
	seen := make(map[security.RoleID]struct{}, len(roles))
	for _, id := range roles {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	var conflicts []Rule
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			if rule, ok := m.CheckPair(distinct[i], distinct[j]); ok {
				conflicts = append(conflicts, rule)
			}
		}
	}
	return conflicts
}
