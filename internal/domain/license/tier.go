package license

import "fmt"

// Tier is a license cost class. Tiers are totally ordered: a higher tier
// subsumes every capability granted by the tiers below it, so the "max tier"
// over a set of menu items is well defined.
type Tier int

const (
	TierNone Tier = iota
	TierTeamMember
	TierOperational
	TierFunctional
	TierEnterprise
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierTeamMember:
		return "team_member"
	case TierOperational:
		return "operational"
	case TierFunctional:
		return "functional"
	case TierEnterprise:
		return "enterprise"
	default:
		return "unknown"
	}
}

// IsValid reports whether the tier is a known value
func (t Tier) IsValid() bool {
	return t >= TierNone && t <= TierEnterprise
}

// Subsumes reports whether this tier grants everything the other tier grants
func (t Tier) Subsumes(other Tier) bool {
	return t >= other
}

// MaxTier returns the higher of two tiers
func MaxTier(a, b Tier) Tier {
	if a >= b {
		return a
	}
	return b
}

// ParseTier converts a feed string into a Tier
func ParseTier(s string) (Tier, error) {
	switch s {
	case "none", "":
		return TierNone, nil
	case "team_member":
		return TierTeamMember, nil
	case "operational":
		return TierOperational, nil
	case "functional":
		return TierFunctional, nil
	case "enterprise":
		return TierEnterprise, nil
	default:
		return TierNone, fmt.Errorf("unknown license tier: %q", s)
	}
}

// AllTiers lists every tier in ascending order
func AllTiers() []Tier {
	return []Tier{TierNone, TierTeamMember, TierOperational, TierFunctional, TierEnterprise}
}

// MarshalText implements encoding.TextMarshaler
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Tier) UnmarshalText(data []byte) error {
	tier, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}
