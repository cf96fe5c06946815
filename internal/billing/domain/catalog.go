package domain

import "fmt"

// Benefits is the immutable entitlement set attached to a tier.
type Benefits struct {
	DiscountPercentage int64 `json:"discount_percentage"`
	MonthlyCredits     int64 `json:"monthly_credits"`
	PrioritySupport    bool  `json:"priority_support"`
	PremiumSupport     bool  `json:"premium_support"`
	EarlyAccess        bool  `json:"early_access"`
	BookingGuarantee   bool  `json:"booking_guarantee"`
	ConciergeService   bool  `json:"concierge_service"`
	UnlimitedBookings  bool  `json:"unlimited_bookings"`
	BundleEligible     bool  `json:"bundle_eligible"`
}

// ListPrice holds the subscription fees of a tier in minor units. Family
// prices are zero for tiers without a family option.
type ListPrice struct {
	Monthly       int64 `json:"monthly"`
	Yearly        int64 `json:"yearly"`
	FamilyMonthly int64 `json:"family_monthly,omitempty"`
	FamilyYearly  int64 `json:"family_yearly,omitempty"`
}

// TierPlan is one catalog row.
type TierPlan struct {
	Tier       Tier
	Benefits   Benefits
	Price      ListPrice
	MaxMembers int
}

// Catalog maps tiers to benefits and prices. It is built once at startup and
// shared read-only, so it is safe for concurrent use.
type Catalog struct {
	plans [3]TierPlan
}

// NewCatalog builds a catalog from one plan per tier.
func NewCatalog(plans ...TierPlan) (*Catalog, error) {
	c := &Catalog{}
	var seen [3]bool
	for _, p := range plans {
		if !p.Tier.Valid() {
			return nil, fmt.Errorf("catalog: unknown tier %q", p.Tier)
		}
		if p.Benefits.DiscountPercentage < 0 || p.Benefits.DiscountPercentage > 100 {
			return nil, fmt.Errorf("catalog: %s discount %d out of range", p.Tier, p.Benefits.DiscountPercentage)
		}
		if p.Benefits.MonthlyCredits < 0 {
			return nil, fmt.Errorf("catalog: %s credits must not be negative", p.Tier)
		}
		if p.Tier.IsPaid() && p.MaxMembers < 2 {
			return nil, fmt.Errorf("catalog: %s family plan needs room for members", p.Tier)
		}
		seen[p.Tier.rank()] = true
		c.plans[p.Tier.rank()] = p
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("catalog: missing plan for tier rank %d", i)
		}
	}
	return c, nil
}

// DefaultCatalog returns the production tier table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		TierPlan{Tier: TierFree},
		TierPlan{
			Tier: TierPlus,
			Benefits: Benefits{
				DiscountPercentage: 15,
				MonthlyCredits:     10000,
				PrioritySupport:    true,
				EarlyAccess:        true,
				BookingGuarantee:   true,
			},
			Price:      ListPrice{Monthly: 19900, Yearly: 199000, FamilyMonthly: 39900, FamilyYearly: 399000},
			MaxMembers: 4,
		},
		TierPlan{
			Tier: TierPro,
			Benefits: Benefits{
				DiscountPercentage: 25,
				MonthlyCredits:     25000,
				PrioritySupport:    true,
				PremiumSupport:     true,
				EarlyAccess:        true,
				BookingGuarantee:   true,
				ConciergeService:   true,
				UnlimitedBookings:  true,
				BundleEligible:     true,
			},
			Price:      ListPrice{Monthly: 49900, Yearly: 499000, FamilyMonthly: 89900, FamilyYearly: 899000},
			MaxMembers: 6,
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Benefits returns the benefits of tier. Tiers reach the catalog already
// validated, so an unknown tier is a programming error and panics.
func (c *Catalog) Benefits(tier Tier) Benefits {
	return c.plan(tier).Benefits
}

// ListPrice returns the fees of tier.
func (c *Catalog) ListPrice(tier Tier) ListPrice {
	return c.plan(tier).Price
}

// PriceFor returns the fee for one billing period.
func (c *Catalog) PriceFor(tier Tier, cadence Cadence, family bool) int64 {
	p := c.plan(tier).Price
	switch {
	case family && cadence == CadenceYearly:
		return p.FamilyYearly
	case family:
		return p.FamilyMonthly
	case cadence == CadenceYearly:
		return p.Yearly
	default:
		return p.Monthly
	}
}

// MaxMembers returns the family seat count of tier, owner included. Zero
// means the tier has no family option.
func (c *Catalog) MaxMembers(tier Tier) int {
	return c.plan(tier).MaxMembers
}

// Plans lists every tier in ascending order.
func (c *Catalog) Plans() []TierPlan {
	out := make([]TierPlan, len(c.plans))
	copy(out, c.plans[:])
	return out
}

func (c *Catalog) plan(tier Tier) TierPlan {
	r := tier.rank()
	if r < 0 {
		panic(fmt.Sprintf("catalog: unknown tier %q", tier))
	}
	return c.plans[r]
}
