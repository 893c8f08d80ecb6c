package snapshot

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// Pair is one published (security index, conflict matrix) snapshot pair. Both
// halves are immutable; a rebuild publishes a whole new pair.
type Pair struct {
	Index  *security.Index
	Matrix *sod.Matrix
}

// Store holds the currently published pair behind a single atomic pointer.
// Readers capture the pair once per request and keep using it; superseded
// pairs are reclaimed by the garbage collector once no request references
// them, so there is no explicit refcounting.
type Store struct {
	current atomic.Pointer[Pair]
	logger  *zap.Logger
}

// NewStore creates an empty store; Current reports false until the first
// Publish
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Publish atomically replaces the published pair
func (s *Store) Publish(p *Pair) {
	s.current.Store(p)
	s.logger.Info("snapshot pair published",
		zap.String("index_version", p.Index.Version().String()),
		zap.String("matrix_version", p.Matrix.Version().String()),
		zap.Int("roles", p.Index.RoleCount()),
		zap.Int("rules", p.Matrix.RuleCount()))
}

// Current returns the published index/matrix pair. Implements the
// recommender's SnapshotProvider.
func (s *Store) Current() (*security.Index, *sod.Matrix, bool) {
	p := s.current.Load()
	if p == nil {
		return nil, nil, false
	}
	return p.Index, p.Matrix, true
}
