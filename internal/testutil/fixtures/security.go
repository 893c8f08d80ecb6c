package fixtures

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
)

// RoleBuilder builds the role records the security feed would deliver for a
// single role
type RoleBuilder struct {
	t     *testing.T
	id    security.RoleID
	name  string
	items []security.RoleRecord
}

// NewRoleBuilder creates a new RoleBuilder with defaults
func NewRoleBuilder(t *testing.T, id string) *RoleBuilder {
	t.Helper()
	return &RoleBuilder{
		t:    t,
		id:   security.RoleID(id),
		name: "Role " + id,
	}
}

// WithName sets the role's display name
func (b *RoleBuilder) WithName(name string) *RoleBuilder {
	b.name = name
	return b
}

// WithMenuItem adds a menu item grant at the given tier
func (b *RoleBuilder) WithMenuItem(itemID string, tier license.Tier) *RoleBuilder {
	b.items = append(b.items, security.RoleRecord{
		RoleID:     b.id,
		RoleName:   b.name,
		MenuItemID: security.MenuItemID(itemID),
		Tier:       tier,
	})
	return b
}

// Build returns the feed records for this role
func (b *RoleBuilder) Build() []security.RoleRecord {
	records := make([]security.RoleRecord, len(b.items))
	for i, rec := range b.items {
		rec.RoleName = b.name
		records[i] = rec
	}
	return records
}

// BuildIndex builds a role index from the given record batches and fails the
// test on any build error
func BuildIndex(t *testing.T, batches ...[]security.RoleRecord) *security.Index {
	t.Helper()
	var all []security.RoleRecord
	for _, batch := range batches {
		all = append(all, batch...)
	}
	idx, err := security.BuildIndex(all)
	require.NoError(t, err)
	return idx
}

// SimpleRole builds a role granting the given items at a single tier
func SimpleRole(t *testing.T, id string, tier license.Tier, itemIDs ...string) []security.RoleRecord {
	t.Helper()
	b := NewRoleBuilder(t, id).WithName(fmt.Sprintf("Role %s", id))
	for _, item := range itemIDs {
		b.WithMenuItem(item, tier)
	}
	return b.Build()
}
