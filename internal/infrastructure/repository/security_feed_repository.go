package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
)

// SecurityFeedRepository reads the role/menu-item/license batch that the
// extraction job lands in Postgres. The engine treats the table as a feed: it
// only ever reads the full current batch.
type SecurityFeedRepository struct {
	db *pgxpool.Pool
}

// NewSecurityFeedRepository creates a new security feed repository
func NewSecurityFeedRepository(db *pgxpool.Pool) *SecurityFeedRepository {
	return &SecurityFeedRepository{db: db}
}

// RoleRecords returns the full current batch of role records
func (r *SecurityFeedRepository) RoleRecords(ctx context.Context) ([]security.RoleRecord, error) {
	query := `
		SELECT role_id, role_name, menu_item_id, license_tier
		FROM role_menu_items
		ORDER BY role_id, menu_item_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying role records: %w", err)
	}
	defer rows.Close()

	var records []security.RoleRecord
	for rows.Next() {
		var (
			roleID, roleName, menuItemID, tierName string
		)
		if err := rows.Scan(&roleID, &roleName, &menuItemID, &tierName); err != nil {
			return nil, fmt.Errorf("scanning role record: %w", err)
		}

		tier, err := license.ParseTier(tierName)
		if err != nil {
			return nil, fmt.Errorf("role %s item %s: %w", roleID, menuItemID, err)
		}

		records = append(records, security.RoleRecord{
			RoleID:     security.RoleID(roleID),
			RoleName:   roleName,
			MenuItemID: security.MenuItemID(menuItemID),
			Tier:       tier,
		})
	}

	return records, rows.Err()
}
