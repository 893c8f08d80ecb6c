package sod

import (
	"fmt"

	"github.com/accessforge/erp-access-advisor/internal/domain/security"
)

// Severity ranks how dangerous a forbidden role combination is
type Severity int

const (
	SeverityMedium Severity = iota
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a feed string into a Severity
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityMedium, fmt.Errorf("unknown severity: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(data []byte) error {
	sev, err := ParseSeverity(string(data))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Rule forbids one identity from holding two roles whose combination enables
// fraud or error. The role pair is unordered: matching is symmetric.
type Rule struct {
	RoleA    security.RoleID `json:"role_a"`
	RoleB    security.RoleID `json:"role_b"`
	Severity Severity        `json:"severity"`
	Category string          `json:"category"`

	// EffectiveSeverity defaults to Severity. It may be lowered by an
	// administratively approved compensating control; the engine never
	// computes the reduction itself.
	EffectiveSeverity Severity `json:"effective_severity"`

	// Supersedes marks a rule as the authoritative one for its pair when the
	// feed carries an older rule for the same pair at a different severity.
	Supersedes bool `json:"supersedes,omitempty"`
}

// Pair returns the rule's canonical unordered role pair
func (r Rule) Pair() PairKey {
	return NewPairKey(r.RoleA, r.RoleB)
}

// PairKey is the canonical form of an unordered role pair
type PairKey struct {
	Low  security.RoleID
	High security.RoleID
}

// NewPairKey normalizes two role ids into a canonical unordered key
func NewPairKey(a, b security.RoleID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return fmt.Sprintf("(%s, %s)", k.Low, k.High)
}
