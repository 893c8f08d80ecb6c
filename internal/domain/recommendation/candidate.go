package recommendation

import (
	"strings"

	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
	"github.com/accessforge/erp-access-advisor/internal/domain/values"
)

// Candidate is one recommended role set for a required-capability request.
// Roles preserve selection order; the slice is never re-sorted after build.
type Candidate struct {
	Roles       []security.RoleID `json:"roles"`
	LicenseTier license.Tier      `json:"license_tier"`
	MonthlyCost values.Money      `json:"monthly_cost"`

	// Coverage is the fraction of required menu items the role set grants,
	// 1.0 when fully covered. Partial coverage is a legitimate result, not
	// an error.
	Coverage float64 `json:"coverage"`

	Conflicts []sod.Rule `json:"conflicts"`

	// Theoretical stays true until 30 days of observed usage validate the
	// candidate; validation itself happens outside this engine.
	Theoretical bool `json:"theoretical"`
}

// FullyCovers reports whether the candidate grants every required item
func (c Candidate) FullyCovers() bool {
	return c.Coverage >= 1.0
}

// RoleSetKey returns a canonical identity for the candidate's role set,
// independent of selection order. Used to deduplicate alternatives.
func (c Candidate) RoleSetKey() string {
	ids := make([]string, len(c.Roles))
	for i, id := range c.Roles {
		ids[i] = string(id)
	}
	// Insertion sort keeps this allocation-light for single-digit sets.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return strings.Join(ids, "|")
}

// HasCriticalConflict reports whether any conflict carries critical effective
// severity
func (c Candidate) HasCriticalConflict() bool {
	for _, rule := range c.Conflicts {
		if rule.EffectiveSeverity == sod.SeverityCritical {
			return true
		}
	}
	return false
}
