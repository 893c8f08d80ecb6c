package snapshot

import (
	"context"

	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// SecurityFeed supplies the role/menu-item/license batch from the source ERP
type SecurityFeed interface {
	// RoleRecords returns the full current batch
	RoleRecords(ctx context.Context) ([]security.RoleRecord, error)
}

// RuleFeed supplies the administratively maintained SoD rule batch
type RuleFeed interface {
	// ConflictRules returns the full current rule set
	ConflictRules(ctx context.Context) ([]sod.Rule, error)
}

// Rebuilder pulls both feeds, builds a fresh snapshot pair, and publishes it
// atomically. On any failure the last known good pair stays published and the
// error is returned for the scheduler to report.
type Rebuilder struct {
	store        *Store
	securityFeed SecurityFeed
	ruleFeed     RuleFeed
	logger       *zap.Logger
}

// NewRebuilder creates a rebuilder publishing into the given store
func NewRebuilder(store *Store, securityFeed SecurityFeed, ruleFeed RuleFeed, logger *zap.Logger) *Rebuilder {
	return &Rebuilder{
		store:        store,
		securityFeed: securityFeed,
		ruleFeed:     ruleFeed,
		logger:       logger,
	}
}

// Rebuild fetches, builds, and publishes one new snapshot pair
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	records, err := r.securityFeed.RoleRecords(ctx)
	if err != nil {
		r.logger.Error("role feed fetch failed, keeping current snapshot", zap.Error(err))
		return domainErrors.Wrap(err, "fetching role records")
	}

	rules, err := r.ruleFeed.ConflictRules(ctx)
	if err != nil {
		r.logger.Error("rule feed fetch failed, keeping current snapshot", zap.Error(err))
		return domainErrors.Wrap(err, "fetching conflict rules")
	}

	index, err := security.BuildIndex(records)
	if err != nil {
		r.logger.Error("security index build rejected", zap.Error(err))
		return err
	}

	matrix, err := sod.BuildMatrix(rules)
	if err != nil {
		r.logger.Error("conflict matrix build rejected", zap.Error(err))
		return err
	}

	r.store.Publish(&Pair{Index: index, Matrix: matrix})
	return nil
}
