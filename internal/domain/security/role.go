package security

import (
	"sort"

	"github.com/accessforge/erp-access-advisor/internal/domain/license"
)

// RoleID identifies a security role in the source ERP
type RoleID string

// MenuItemID identifies a menu item (a single grantable capability)
type MenuItemID string

// MenuItem is immutable reference data: one capability and the license tier
// required to exercise it.
type MenuItem struct {
	ID   MenuItemID   `json:"id"`
	Tier license.Tier `json:"license_tier"`
}

// Role is a named bundle of menu items. Roles are immutable within one index
// snapshot; a rebuild replaces the whole set.
type Role struct {
	ID        RoleID                  `json:"id"`
	Name      string                  `json:"name"`
	MenuItems map[MenuItemID]MenuItem `json:"menu_items"`

	// RequiredTier is the max tier over the role's menu items, derived at
	// build time and never stored in the source feed.
	RequiredTier license.Tier `json:"required_tier"`
}

// Grants reports whether the role includes the given menu item
func (r *Role) Grants(id MenuItemID) bool {
	_, ok := r.MenuItems[id]
	return ok
}

// MenuItemIDs returns the role's menu item ids in sorted order
func (r *Role) MenuItemIDs() []MenuItemID {
	ids := make([]MenuItemID, 0, len(r.MenuItems))
	for id := range r.MenuItems {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
