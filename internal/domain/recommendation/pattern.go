package recommendation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a pattern's lifecycle state. Recommendations of a pattern are only
// surfaced as actionable while the pattern is Active; everything else is
// collected silently for validation.
type State int

const (
	StateCreated State = iota
	StateObserving
	StateValidationReview
	StateActive
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateObserving:
		return "observing"
	case StateValidationReview:
		return "validation_review"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseState converts a stored string into a State
func ParseState(s string) (State, error) {
	switch s {
	case "created":
		return StateCreated, nil
	case "observing":
		return StateObserving, nil
	case "validation_review":
		return StateValidationReview, nil
	case "active":
		return StateActive, nil
	case "disabled":
		return StateDisabled, nil
	default:
		return StateCreated, fmt.Errorf("unknown pattern state: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(data []byte) error {
	state, err := ParseState(string(data))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// RollbackCategory classifies why a past recommendation was reverted. The
// category decides the confidence penalty.
type RollbackCategory int

const (
	RollbackAlgorithmError RollbackCategory = iota
	RollbackDataQuality
	RollbackBusinessException
	RollbackSeasonal
	RollbackUserPreference
)

func (c RollbackCategory) String() string {
	switch c {
	case RollbackAlgorithmError:
		return "algorithm_error"
	case RollbackDataQuality:
		return "data_quality"
	case RollbackBusinessException:
		return "business_exception"
	case RollbackSeasonal:
		return "seasonal"
	case RollbackUserPreference:
		return "user_preference"
	default:
		return "unknown"
	}
}

// ParseRollbackCategory converts a report string into a RollbackCategory
func ParseRollbackCategory(s string) (RollbackCategory, error) {
	switch s {
	case "algorithm_error":
		return RollbackAlgorithmError, nil
	case "data_quality":
		return RollbackDataQuality, nil
	case "business_exception":
		return RollbackBusinessException, nil
	case "seasonal":
		return RollbackSeasonal, nil
	case "user_preference":
		return RollbackUserPreference, nil
	default:
		return RollbackAlgorithmError, fmt.Errorf("unknown rollback category: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (c RollbackCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *RollbackCategory) UnmarshalText(data []byte) error {
	cat, err := ParseRollbackCategory(string(data))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// RollbackEvent records one human-confirmed reversal of a recommendation
type RollbackEvent struct {
	ID          uuid.UUID        `json:"id"`
	AlgorithmID string           `json:"algorithm_id"`
	PatternKey  string           `json:"pattern_key"`
	Category    RollbackCategory `json:"category"`
	Timestamp   time.Time        `json:"timestamp"`

	// ConfidenceDelta is derived from the category at record time so the
	// event history stays interpretable if the configured deltas change.
	ConfidenceDelta float64 `json:"confidence_delta"`
}

// ObservationStats holds the externally reported measurements the lifecycle
// guards evaluate.
type ObservationStats struct {
	EvaluatedCoverage      float64 `json:"evaluated_coverage"`
	Accuracy               float64 `json:"accuracy"`
	CriticalFalsePositives int     `json:"critical_false_positives"`
}

// Pattern tracks confidence and lifecycle state for one recurring
// recommendation shape of one algorithm, e.g. "readonly:department=Finance".
type Pattern struct {
	AlgorithmID string `json:"algorithm_id"`
	PatternKey  string `json:"pattern_key"`

	Confidence float64 `json:"confidence"`
	State      State   `json:"state"`

	// Rollbacks within the rolling window; older events are pruned lazily
	// on next access.
	Rollbacks []RollbackEvent `json:"rollbacks"`

	Stats          ObservationStats `json:"stats"`
	Approved       bool             `json:"approved"`
	LogicVersion   string           `json:"logic_version"`
	EnteredStateAt time.Time        `json:"entered_state_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewPattern creates a pattern record with the optimistic defaults a pattern
// carries before any evidence exists.
func NewPattern(algorithmID, patternKey, logicVersion string, now time.Time) *Pattern {
	return &Pattern{
		AlgorithmID:    algorithmID,
		PatternKey:     patternKey,
		Confidence:     1.0,
		State:          StateCreated,
		LogicVersion:   logicVersion,
		EnteredStateAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy safe to hand outside the ledger's locks
func (p *Pattern) Clone() Pattern {
	out := *p
	out.Rollbacks = make([]RollbackEvent, len(p.Rollbacks))
	copy(out.Rollbacks, p.Rollbacks)
	return out
}

// RollbacksSince counts rollback events at or after the cutoff
func (p *Pattern) RollbacksSince(cutoff time.Time) int {
	n := 0
	for _, ev := range p.Rollbacks {
		if !ev.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}
