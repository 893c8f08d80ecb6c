package recommendation

import (
	"sort"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// DefaultTopK is the number of alternatives produced when the caller does not
// ask for a specific count
const DefaultTopK = 3

// Recommender runs the greedy covering algorithm against one snapshot pair.
// It is pure: identical inputs always produce identical ranked output, which
// is what makes concurrent reads against a shared snapshot safe.
type Recommender struct {
	catalog *license.Catalog
}

// NewRecommender creates a recommender pricing candidates from the given
// catalog version
func NewRecommender(catalog *license.Catalog) *Recommender {
	return &Recommender{catalog: catalog}
}

// Recommend produces up to topK distinct candidates covering the required
// menu items, sorted ascending by monthly cost. If any required item has no
// covering role at all the request fails with NO_COVERAGE_FOUND listing every
// such item; a candidate that covers only part of the set (because the
// alternatives search excluded key roles) is returned with Coverage < 1.0
// rather than dropped, since partial coverage is still informative.
func (r *Recommender) Recommend(index *security.Index, matrix *sod.Matrix, required []security.MenuItemID, topK int) ([]recommendation.Candidate, error) {
	requiredSet := make(map[security.MenuItemID]struct{}, len(required))
	for _, item := range required {
		requiredSet[item] = struct{}{}
	}
	if len(requiredSet) == 0 {
		return nil, domainErrors.NewValidationError("EMPTY_REQUIREMENT",
			"required menu items cannot be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	var uncoverable []string
	for item := range requiredSet {
		if len(index.RolesCovering(item)) == 0 {
			uncoverable = append(uncoverable, string(item))
		}
	}
	if len(uncoverable) > 0 {
		sort.Strings(uncoverable)
		return nil, domainErrors.NewNoCoverageError(uncoverable)
	}

	// Each run after the first excludes the highest-marginal-value pick of
	// the run before it, forcing coverage via an alternative route. That
	// yields genuinely diverse candidates, not re-orderings.
	excluded := make(map[security.RoleID]struct{})
	seenSets := make(map[string]struct{})
	var candidates []recommendation.Candidate

	for attempt := 0; attempt < topK; attempt++ {
		selected, pivot := r.cover(index, requiredSet, excluded)
		if len(selected) == 0 {
			break
		}

		cand := r.buildCandidate(index, matrix, requiredSet, selected)
		if _, dup := seenSets[cand.RoleSetKey()]; !dup {
			seenSets[cand.RoleSetKey()] = struct{}{}
			candidates = append(candidates, cand)
		}

		if pivot == "" {
			break
		}
		excluded[pivot] = struct{}{}
	}

	// Ascending by monthly cost, then by role count; the stable sort keeps
	// construction order as the final tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		cmp := candidates[i].MonthlyCost.Compare(candidates[j].MonthlyCost)
		if cmp != 0 {
			return cmp < 0
		}
		return len(candidates[i].Roles) < len(candidates[j].Roles)
	})

	return candidates, nil
}

// cover runs one greedy pass. It returns the selected roles in selection
// order plus the highest-scoring pick of the pass, which the caller excludes
// on the next pass.
func (r *Recommender) cover(index *security.Index, required map[security.MenuItemID]struct{}, excluded map[security.RoleID]struct{}) ([]security.RoleID, security.RoleID) {
	uncovered := make(map[security.MenuItemID]struct{}, len(required))
	for item := range required {
		uncovered[item] = struct{}{}
	}

	var selected []security.RoleID
	selectedSet := make(map[security.RoleID]struct{})
	currentTier := license.TierNone

	var pivot security.RoleID
	pivotScore := -1.0

	for len(uncovered) > 0 {
		best, bestScore := r.pickBestRole(index, uncovered, currentTier, excluded, selectedSet)
		if best == "" {
			// No remaining role adds coverage: surface the partial
			// candidate instead of failing.
			break
		}

		role, _ := index.Role(best)
		selected = append(selected, best)
		selectedSet[best] = struct{}{}
		currentTier = license.MaxTier(currentTier, role.RequiredTier)
		for item := range role.MenuItems {
			delete(uncovered, item)
		}

		if bestScore > pivotScore {
			pivotScore = bestScore
			pivot = best
		}
	}

	return selected, pivot
}

// pickBestRole selects the role maximizing newly-covered items per marginal
// license cost. Ties go to the lower derived tier, then the lexicographically
// smallest role id; iteration over sorted ids makes the whole pass
// deterministic.
func (r *Recommender) pickBestRole(index *security.Index, uncovered map[security.MenuItemID]struct{}, currentTier license.Tier, excluded, selected map[security.RoleID]struct{}) (security.RoleID, float64) {
	var bestID security.RoleID
	var bestScore float64
	var bestTier license.Tier
	found := false

	for _, id := range index.RoleIDs() {
		if _, skip := excluded[id]; skip {
			continue
		}
		if _, skip := selected[id]; skip {
			continue
		}

		role, _ := index.Role(id)
		covered := 0
		for item := range uncovered {
			if role.Grants(item) {
				covered++
			}
		}
		if covered == 0 {
			continue
		}

		score := float64(covered) / (r.marginalCost(currentTier, role.RequiredTier) + 1)

		if !found || score > bestScore ||
			(score == bestScore && role.RequiredTier < bestTier) {
			found = true
			bestID = id
			bestScore = score
			bestTier = role.RequiredTier
		}
	}

	if !found {
		return "", 0
	}
	return bestID, bestScore
}

// marginalCost is the added monthly license cost of raising the candidate's
// tier to accommodate a role. A role at or below the current tier is free.
func (r *Recommender) marginalCost(currentTier, roleTier license.Tier) float64 {
	if currentTier.Subsumes(roleTier) {
		return 0
	}
	raised, err := r.catalog.Price(roleTier).Sub(r.catalog.Price(currentTier))
	if err != nil {
		return 0
	}
	return raised.ToFloat64()
}

func (r *Recommender) buildCandidate(index *security.Index, matrix *sod.Matrix, required map[security.MenuItemID]struct{}, selected []security.RoleID) recommendation.Candidate {
	tier := license.TierNone
	covered := 0
	coveredSet := make(map[security.MenuItemID]struct{})
	for _, id := range selected {
		role, _ := index.Role(id)
		tier = license.MaxTier(tier, role.RequiredTier)
		for item := range role.MenuItems {
			if _, want := required[item]; want {
				if _, seen := coveredSet[item]; !seen {
					coveredSet[item] = struct{}{}
					covered++
				}
			}
		}
	}

	roles := make([]security.RoleID, len(selected))
	copy(roles, selected)

	return recommendation.Candidate{
		Roles:       roles,
		LicenseTier: tier,
		MonthlyCost: r.catalog.Price(tier),
		Coverage:    float64(covered) / float64(len(required)),
		Conflicts:   matrix.CheckSet(selected),
		Theoretical: true,
	}
}
