package snapshot

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
	"github.com/accessforge/erp-access-advisor/internal/testutil/fixtures"
)

type stubSecurityFeed struct {
	records []security.RoleRecord
	err     error
}

func (f *stubSecurityFeed) RoleRecords(ctx context.Context) ([]security.RoleRecord, error) {
	return f.records, f.err
}

type stubRuleFeed struct {
	rules []sod.Rule
	err   error
}

func (f *stubRuleFeed) ConflictRules(ctx context.Context) ([]sod.Rule, error) {
	return f.rules, f.err
}

func TestStorePublishAndCurrent(t *testing.T) {
	store := NewStore(zap.NewNop())

	_, _, ok := store.Current()
	assert.False(t, ok, "empty store reports not ready")

	idx := fixtures.BuildIndex(t, fixtures.SimpleRole(t, "R1", license.TierTeamMember, "item_a"))
	matrix := fixtures.BuildMatrix(t)
	store.Publish(&Pair{Index: idx, Matrix: matrix})

	gotIdx, gotMatrix, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, idx.Version(), gotIdx.Version())
	assert.Equal(t, matrix.Version(), gotMatrix.Version())
}

func TestStoreSwapDoesNotAffectCapturedPair(t *testing.T) {
	store := NewStore(zap.NewNop())
	first := fixtures.BuildIndex(t, fixtures.SimpleRole(t, "R1", license.TierTeamMember, "item_a"))
	store.Publish(&Pair{Index: first, Matrix: fixtures.BuildMatrix(t)})

	capturedIdx, _, ok := store.Current()
	require.True(t, ok)

	second := fixtures.BuildIndex(t, fixtures.SimpleRole(t, "R2", license.TierTeamMember, "item_b"))
	store.Publish(&Pair{Index: second, Matrix: fixtures.BuildMatrix(t)})

	// The captured pair keeps answering with the old snapshot.
	assert.Equal(t, first.Version(), capturedIdx.Version())

	currentIdx, _, _ := store.Current()
	assert.Equal(t, second.Version(), currentIdx.Version())
}

func TestRebuildPublishes(t *testing.T) {
	store := NewStore(zap.NewNop())
	r := NewRebuilder(store,
		&stubSecurityFeed{records: []security.RoleRecord{
			{RoleID: "R1", RoleName: "Role One", MenuItemID: "item_a", Tier: license.TierTeamMember},
		}},
		&stubRuleFeed{},
		zap.NewNop())

	require.NoError(t, r.Rebuild(context.Background()))

	idx, _, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, 1, idx.RoleCount())
}

func TestRebuildFailureKeepsLastGoodSnapshot(t *testing.T) {
	store := NewStore(zap.NewNop())
	securityFeed := &stubSecurityFeed{records: []security.RoleRecord{
		{RoleID: "R1", RoleName: "Role One", MenuItemID: "item_a", Tier: license.TierTeamMember},
	}}
	ruleFeed := &stubRuleFeed{}
	r := NewRebuilder(store, securityFeed, ruleFeed, zap.NewNop())

	require.NoError(t, r.Rebuild(context.Background()))
	goodIdx, _, _ := store.Current()

	t.Run("feed error", func(t *testing.T) {
		securityFeed.err = fmt.Errorf("connection refused")
		require.Error(t, r.Rebuild(context.Background()))
		idx, _, ok := store.Current()
		require.True(t, ok)
		assert.Equal(t, goodIdx.Version(), idx.Version())
		securityFeed.err = nil
	})

	t.Run("malformed batch", func(t *testing.T) {
		securityFeed.records = []security.RoleRecord{
			{RoleID: "R1", RoleName: "Role One", MenuItemID: "item_a", Tier: license.TierTeamMember},
			{RoleID: "R1", RoleName: "Other Name", MenuItemID: "item_b", Tier: license.TierTeamMember},
		}
		require.Error(t, r.Rebuild(context.Background()))
		idx, _, ok := store.Current()
		require.True(t, ok)
		assert.Equal(t, goodIdx.Version(), idx.Version())
	})
}
