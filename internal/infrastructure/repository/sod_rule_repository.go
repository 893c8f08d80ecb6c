package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// SoDRuleRepository reads the administratively maintained Segregation-of-
// Duties rule configuration
type SoDRuleRepository struct {
	db *pgxpool.Pool
}

// NewSoDRuleRepository creates a new SoD rule repository
func NewSoDRuleRepository(db *pgxpool.Pool) *SoDRuleRepository {
	return &SoDRuleRepository{db: db}
}

// ConflictRules returns the full current rule set
func (r *SoDRuleRepository) ConflictRules(ctx context.Context) ([]sod.Rule, error) {
	query := `
		SELECT role_a, role_b, severity, category, effective_severity, supersedes
		FROM sod_rules
		ORDER BY role_a, role_b`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sod rules: %w", err)
	}
	defer rows.Close()

	var rules []sod.Rule
	for rows.Next() {
		var (
			roleA, roleB, severityName, category string
			effectiveName                        *string
			supersedes                           bool
		)
		if err := rows.Scan(&roleA, &roleB, &severityName, &category, &effectiveName, &supersedes); err != nil {
			return nil, fmt.Errorf("scanning sod rule: %w", err)
		}

		severity, err := sod.ParseSeverity(severityName)
		if err != nil {
			return nil, fmt.Errorf("rule (%s, %s): %w", roleA, roleB, err)
		}

		// effective_severity is NULL unless an admin override exists.
		effective := severity
		if effectiveName != nil {
			effective, err = sod.ParseSeverity(*effectiveName)
			if err != nil {
				return nil, fmt.Errorf("rule (%s, %s) override: %w", roleA, roleB, err)
			}
		}

		rules = append(rules, sod.Rule{
			RoleA:             security.RoleID(roleA),
			RoleB:             security.RoleID(roleB),
			Severity:          severity,
			Category:          category,
			EffectiveSeverity: effective,
			Supersedes:        supersedes,
		})
	}

	return rules, rows.Err()
}
