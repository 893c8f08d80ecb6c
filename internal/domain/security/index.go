package security

import (
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/license"
)

// RoleRecord is one row of the role/menu-item/license source feed
type RoleRecord struct {
	RoleID     RoleID
	RoleName   string
	MenuItemID MenuItemID
	Tier       license.Tier
}

// Index is an immutable snapshot of the ERP security model. It is fully
// constructed before it is published; readers never observe a partial build.
type Index struct {
	version uuid.UUID
	builtAt time.Time
	roles   map[RoleID]*Role

	// reverse maps menu item → roles granting it, sorted by role id so that
	// iteration order is deterministic for the recommender.
	reverse map[MenuItemID][]RoleID
}

// BuildIndex groups feed records by role, derives each role's required tier,
// and builds the reverse index. The whole batch is rejected with
// DuplicateRoleDefinition on conflicting duplicates: malformed input is a
// data-quality problem upstream, not something to resolve silently.
func BuildIndex(records []RoleRecord) (*Index, error) {
	roles := make(map[RoleID]*Role)

	for _, rec := range records {
		if rec.RoleID == "" || rec.MenuItemID == "" {
			return nil, domainErrors.NewValidationError("INVALID_ROLE_RECORD",
				"role record is missing role id or menu item id")
		}
		if !rec.Tier.IsValid() {
			return nil, domainErrors.NewValidationError("INVALID_LICENSE_TIER",
				"role record carries an unknown license tier")
		}

		role, ok := roles[rec.RoleID]
		if !ok {
			role = &Role{
				ID:        rec.RoleID,
				Name:      rec.RoleName,
				MenuItems: make(map[MenuItemID]MenuItem),
			}
			roles[rec.RoleID] = role
		}

		if role.Name != rec.RoleName {
			return nil, domainErrors.NewDuplicateRoleError(string(rec.RoleID))
		}
		if existing, ok := role.MenuItems[rec.MenuItemID]; ok {
			// Exact duplicate rows are tolerated (feeds re-send full
			// batches); the same item at a different tier is a conflict.
			if existing.Tier != rec.Tier {
				return nil, domainErrors.NewDuplicateRoleError(string(rec.RoleID))
			}
			continue
		}

		role.MenuItems[rec.MenuItemID] = MenuItem{ID: rec.MenuItemID, Tier: rec.Tier}
		role.RequiredTier = license.MaxTier(role.RequiredTier, rec.Tier)
	}

	reverse := make(map[MenuItemID][]RoleID)
	for id, role := range roles {
		for itemID := range role.MenuItems {
			reverse[itemID] = append(reverse[itemID], id)
		}
	}
	for itemID := range reverse {
		ids := reverse[itemID]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	return &Index{
		version: uuid.New(),
		builtAt: time.Now().UTC(),
		roles:   roles,
		reverse: reverse,
	}, nil
}

// Version returns the snapshot version id
func (i *Index) Version() uuid.UUID {
	return i.version
}

// BuiltAt returns the snapshot build time
func (i *Index) BuiltAt() time.Time {
	return i.builtAt
}

// Role returns a role by id
func (i *Index) Role(id RoleID) (*Role, bool) {
	r, ok := i.roles[id]
	return r, ok
}

// RoleCount returns the number of roles in the snapshot
func (i *Index) RoleCount() int {
	return len(i.roles)
}

// RoleIDs returns every role id in sorted order
func (i *Index) RoleIDs() []RoleID {
	ids := make([]RoleID, 0, len(i.roles))
	for id := range i.roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// RolesCovering returns the roles granting a menu item, sorted by role id.
// An unindexed item yields an empty result; whether that is fatal is the
// caller's decision. The returned slice is shared and must not be mutated.
func (i *Index) RolesCovering(id MenuItemID) []RoleID {
	return i.reverse[id]
}
