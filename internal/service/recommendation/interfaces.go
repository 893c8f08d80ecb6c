package recommendation

import (
	"context"
	"time"

	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// SnapshotProvider hands out the currently published snapshot pair. A request
// captures the pair once at call start and keeps using it; rebuilds never
// affect in-flight requests.
type SnapshotProvider interface {
	// Current returns the published index/matrix pair, or false if no
	// snapshot has been published yet
	Current() (*security.Index, *sod.Matrix, bool)
}

// PatternTracker registers that a recommendation of a pattern was issued and
// reports the pattern's lifecycle state and confidence
type PatternTracker interface {
	// Track ensures the pattern record exists, moves a brand-new pattern
	// into observation, and returns its current state and confidence
	Track(ctx context.Context, algorithmID, patternKey string) (recommendation.State, float64, error)
}

// MetricsCollector defines the interface for recommendation metrics
type MetricsCollector interface {
	// RecordRecommendation records one completed recommendation request
	RecordRecommendation(ctx context.Context, algorithmID string, candidates int, latency time.Duration)
	// RecordNoCoverage records a request rejected for uncoverable items
	RecordNoCoverage(ctx context.Context, algorithmID string)
}

// Service defines the recommendation query surface
type Service interface {
	// Recommend ranks role sets covering the required menu items
	Recommend(ctx context.Context, req RecommendRequest) (*Result, error)
	// CheckRoles runs a standalone conflict check over an ad hoc role set
	CheckRoles(ctx context.Context, roles []security.RoleID) ([]sod.Rule, error)
}

// RecommendRequest carries one required-capability query
type RecommendRequest struct {
	RequiredMenuItems []security.MenuItemID
	TopK              int

	// PatternKey groups recommendations sharing a recurring shape, e.g.
	// "readonly:department=Finance"; it is the unit of confidence tracking.
	PatternKey string
}

// Result is a ranked, conflict-annotated candidate list tagged with the
// pattern's observation state
type Result struct {
	Candidates   []recommendation.Candidate `json:"candidates"`
	AlgorithmID  string                     `json:"algorithm_id"`
	PatternKey   string                     `json:"pattern_key"`
	PatternState recommendation.State       `json:"pattern_state"`
	Confidence   float64                    `json:"confidence"`

	// Actionable is false while the pattern is still being observed: the
	// candidates are logged and returned for display, but must not be
	// surfaced as a provisioning action.
	Actionable bool `json:"actionable"`

	IndexVersion  string `json:"index_version"`
	MatrixVersion string `json:"matrix_version"`
}
