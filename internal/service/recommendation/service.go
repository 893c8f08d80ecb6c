package recommendation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	domainrec "github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// DefaultMaxRequiredItems bounds one request's required-item set
const DefaultMaxRequiredItems = 500

// service implements the Service interface
type service struct {
	provider         SnapshotProvider
	recommender      *Recommender
	tracker          PatternTracker
	metrics          MetricsCollector
	logger           *zap.Logger
	algorithmID      string
	defaultTopK      int
	maxRequiredItems int
}

// NewService creates the recommendation query service
func NewService(
	provider SnapshotProvider,
	recommender *Recommender,
	tracker PatternTracker,
	metrics MetricsCollector,
	logger *zap.Logger,
	algorithmID string,
	defaultTopK int,
	maxRequiredItems int,
) Service {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if maxRequiredItems <= 0 {
		maxRequiredItems = DefaultMaxRequiredItems
	}
	return &service{
		provider:         provider,
		recommender:      recommender,
		tracker:          tracker,
		metrics:          metrics,
		logger:           logger,
		algorithmID:      algorithmID,
		defaultTopK:      defaultTopK,
		maxRequiredItems: maxRequiredItems,
	}
}

// Recommend captures the published snapshot pair, runs the covering
// algorithm, and tags the result with the pattern's observation state. The
// candidates are always returned; Actionable tells the caller whether they
// may be surfaced as a provisioning action or only displayed.
func (s *service) Recommend(ctx context.Context, req RecommendRequest) (*Result, error) {
	start := time.Now()

	if len(req.RequiredMenuItems) > s.maxRequiredItems {
		return nil, domainErrors.NewValidationError("TOO_MANY_REQUIRED_ITEMS",
			fmt.Sprintf("request carries %d required menu items, limit is %d",
				len(req.RequiredMenuItems), s.maxRequiredItems))
	}

	index, matrix, ok := s.provider.Current()
	if !ok {
		return nil, domainErrors.ErrSnapshotNotReady
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	candidates, err := s.recommender.Recommend(index, matrix, req.RequiredMenuItems, topK)
	if err != nil {
		if domainErrors.IsCode(err, "NO_COVERAGE_FOUND") && s.metrics != nil {
			s.metrics.RecordNoCoverage(ctx, s.algorithmID)
		}
		return nil, err
	}

	state := domainrec.StateObserving
	confidence := 1.0
	if s.tracker != nil && req.PatternKey != "" {
		state, confidence, err = s.tracker.Track(ctx, s.algorithmID, req.PatternKey)
		if err != nil {
			return nil, domainErrors.Wrap(err, "tracking pattern")
		}
	}

	if s.metrics != nil {
		s.metrics.RecordRecommendation(ctx, s.algorithmID, len(candidates), time.Since(start))
	}

	s.logger.Info("recommendation produced",
		zap.String("algorithm_id", s.algorithmID),
		zap.String("pattern_key", req.PatternKey),
		zap.Int("required_items", len(req.RequiredMenuItems)),
		zap.Int("candidates", len(candidates)),
		zap.String("pattern_state", state.String()),
		zap.Duration("latency", time.Since(start)))

	return &Result{
		Candidates:    candidates,
		AlgorithmID:   s.algorithmID,
		PatternKey:    req.PatternKey,
		PatternState:  state,
		Confidence:    confidence,
		Actionable:    state == domainrec.StateActive,
		IndexVersion:  index.Version().String(),
		MatrixVersion: matrix.Version().String(),
	}, nil
}

// CheckRoles answers ad hoc "would these roles conflict" queries outside the
// recommendation flow
func (s *service) CheckRoles(ctx context.Context, roles []security.RoleID) ([]sod.Rule, error) {
	_, matrix, ok := s.provider.Current()
	if !ok {
		return nil, domainErrors.ErrSnapshotNotReady
	}
	return matrix.CheckSet(roles), nil
}
