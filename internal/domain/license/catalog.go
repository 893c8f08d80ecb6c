package license

import (
	"fmt"

	"github.com/accessforge/erp-access-advisor/internal/domain/values"
)

// Catalog maps license tiers to their monthly per-user cost. Catalogs are
// versioned, immutable configuration objects: pricing changes produce a new
// Catalog, they never mutate a published one.
type Catalog struct {
	version string
	prices  map[Tier]values.Money
}

// NewCatalog builds a catalog from a complete tier→price table. Every tier
// must be priced and prices must not decrease as tiers ascend.
func NewCatalog(version string, prices map[Tier]values.Money) (*Catalog, error) {
	if version == "" {
		return nil, fmt.Errorf("catalog version cannot be empty")
	}

	copied := make(map[Tier]values.Money, len(prices))
	prev := values.Zero(values.USD)
	for _, tier := range AllTiers() {
		price, ok := prices[tier]
		if !ok {
			return nil, fmt.Errorf("catalog %s: missing price for tier %s", version, tier)
		}
		if price.Compare(prev) < 0 {
			return nil, fmt.Errorf("catalog %s: tier %s priced below the tier beneath it", version, tier)
		}
		copied[tier] = price
		prev = price
	}

	return &Catalog{version: version, prices: copied}, nil
}

// DefaultCatalog returns the standard published price list
func DefaultCatalog() *Catalog {
	c, err := NewCatalog("2025-01", map[Tier]values.Money{
		TierNone:        values.Zero(values.USD),
		TierTeamMember:  values.MustNewMoneyFromFloat(8, values.USD),
		TierOperational: values.MustNewMoneyFromFloat(35, values.USD),
		TierFunctional:  values.MustNewMoneyFromFloat(70, values.USD),
		TierEnterprise:  values.MustNewMoneyFromFloat(95, values.USD),
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Version returns the catalog version identifier
func (c *Catalog) Version() string {
	return c.version
}

// Price returns the monthly per-user cost of a tier
func (c *Catalog) Price(t Tier) values.Money {
	if price, ok := c.prices[t]; ok {
		return price
	}
	return values.Zero(values.USD)
}
