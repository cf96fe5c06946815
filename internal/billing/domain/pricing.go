package domain

import (
	"math"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

const (
	bundlePercentPerService int64 = 2
	maxBundlePercentage     int64 = 10
)

// PricingResult is the breakdown of a charge. All amounts are minor units.
type PricingResult struct {
	OriginalPrice            int64 `json:"original_price"`
	DiscountPercentage       int64 `json:"discount_percentage"`
	DiscountAmount           int64 `json:"discount_amount"`
	DiscountedPrice          int64 `json:"discounted_price"`
	BundleDiscountPercentage int64 `json:"bundle_discount_percentage"`
	BundleDiscount           int64 `json:"bundle_discount"`
	CreditsApplied           int64 `json:"credits_applied"`
	FinalPrice               int64 `json:"final_price"`
	TotalSavings             int64 `json:"total_savings"`
}

// Calculator prices services against the tier catalog. Percentages are
// floored so a rounding artifact can only ever favor the customer.
type Calculator struct {
	catalog *Catalog
}

// NewCalculator creates a calculator over catalog.
func NewCalculator(catalog *Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

// PriceService prices a single service. Credits are applied after the tier
// discount and only when useCredits is set.
func (c *Calculator) PriceService(originalPrice int64, tier Tier, availableCredits int64, useCredits bool) (PricingResult, error) {
	if err := c.validate(tier, originalPrice, availableCredits); err != nil {
		return PricingResult{}, err
	}

	benefits := c.catalog.Benefits(tier)
	discount, err := percentOf(originalPrice, benefits.DiscountPercentage)
	if err != nil {
		return PricingResult{}, err
	}

	r := PricingResult{
		OriginalPrice:      originalPrice,
		DiscountPercentage: benefits.DiscountPercentage,
		DiscountAmount:     discount,
		DiscountedPrice:    originalPrice - discount,
	}
	if useCredits {
		r.CreditsApplied = min(availableCredits, r.DiscountedPrice)
	}
	r.FinalPrice = max(0, r.DiscountedPrice-r.CreditsApplied)
	r.TotalSavings = r.OriginalPrice - r.FinalPrice
	return r, nil
}

// PriceBundle prices several services booked together. Bundle-eligible tiers
// get 2% per service, capped at 10%, on the tier-discounted subtotal before
// credits. Available credits are always applied.
func (c *Calculator) PriceBundle(services []int64, tier Tier, availableCredits int64) (PricingResult, error) {
	if err := c.validate(tier, 0, availableCredits); err != nil {
		return PricingResult{}, err
	}
	if len(services) == 0 {
		return PricingResult{}, nil
	}

	var subtotal int64
	for i, price := range services {
		if price < 0 {
			return PricingResult{}, sharedDomain.ErrNegativeAmount.
				WithMessage("service %d has a negative price", i).
				WithDetail("price", price).
				WithDetail("index", int64(i))
		}
		if subtotal > math.MaxInt64-price {
			return PricingResult{}, ErrAmountOverflow.WithDetail("index", int64(i))
		}
		subtotal += price
	}

	benefits := c.catalog.Benefits(tier)
	discount, err := percentOf(subtotal, benefits.DiscountPercentage)
	if err != nil {
		return PricingResult{}, err
	}

	r := PricingResult{
		OriginalPrice:      subtotal,
		DiscountPercentage: benefits.DiscountPercentage,
		DiscountAmount:     discount,
		DiscountedPrice:    subtotal - discount,
	}
	if benefits.BundleEligible {
		r.BundleDiscountPercentage = min(maxBundlePercentage, bundlePercentPerService*int64(len(services)))
		if r.BundleDiscount, err = percentOf(r.DiscountedPrice, r.BundleDiscountPercentage); err != nil {
			return PricingResult{}, err
		}
	}

	payable := r.DiscountedPrice - r.BundleDiscount
	r.CreditsApplied = min(availableCredits, payable)
	r.FinalPrice = max(0, payable-r.CreditsApplied)
	r.TotalSavings = r.OriginalPrice - r.FinalPrice
	return r, nil
}

func (c *Calculator) validate(tier Tier, price, credits int64) error {
	if !tier.Valid() {
		return ErrInvalidTier.WithMessage("unknown tier %q", tier)
	}
	if price < 0 {
		return sharedDomain.ErrNegativeAmount.WithMessage("price must not be negative").WithDetail("price", price)
	}
	if credits < 0 {
		return sharedDomain.ErrNegativeAmount.WithMessage("credits must not be negative").WithDetail("credits", credits)
	}
	return nil
}

// percentOf returns floor(amount * pct / 100) for non-negative inputs,
// rejecting products that overflow int64.
func percentOf(amount, pct int64) (int64, error) {
	if pct == 0 || amount == 0 {
		return 0, nil
	}
	if amount > math.MaxInt64/pct {
		return 0, ErrAmountOverflow.WithDetail("amount", amount).WithDetail("percentage", pct)
	}
	return amount * pct / 100, nil
}
