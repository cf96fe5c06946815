package domain

import (
	"fmt"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

// Usage is a subscriber's activity over the last month.
type Usage struct {
	Tier            Tier  `json:"tier"`
	MonthlyBookings int64 `json:"monthly_bookings"`
	MonthlySpending int64 `json:"monthly_spending"`
	SupportTickets  int64 `json:"support_tickets"`
}

// SuggestionReason says which signal produced a suggestion.
type SuggestionReason string

const (
	ReasonCost    SuggestionReason = "cost"
	ReasonSupport SuggestionReason = "support"
)

// Suggestion recommends moving to a higher tier.
type Suggestion struct {
	CurrentTier      Tier             `json:"current_tier"`
	SuggestedTier    Tier             `json:"suggested_tier"`
	Reason           SuggestionReason `json:"reason"`
	ProjectedSavings int64            `json:"projected_savings"`
	IncrementalCost  int64            `json:"incremental_cost"`
	EstimatedSavings int64            `json:"estimated_savings"`
	Justification    string           `json:"justification"`
}

// UpgradeThreshold is the usage at which an upgrade from a tier is worth
// considering. Any one signal qualifies.
type UpgradeThreshold struct {
	Bookings       int64
	Spending       int64
	SupportTickets int64
}

func (t UpgradeThreshold) qualifies(u Usage) bool {
	return u.MonthlyBookings >= t.Bookings ||
		u.MonthlySpending >= t.Spending ||
		u.SupportTickets >= t.SupportTickets
}

// DefaultThresholds returns the upgrade thresholds keyed by the tier being
// upgraded from.
func DefaultThresholds() map[Tier]UpgradeThreshold {
	return map[Tier]UpgradeThreshold{
		TierFree: {Bookings: 3, Spending: 20000, SupportTickets: 2},
		TierPlus: {Bookings: 8, Spending: 100000, SupportTickets: 4},
	}
}

// Advisor recommends upgrades from recent usage.
type Advisor struct {
	catalog    *Catalog
	calculator *Calculator
	thresholds map[Tier]UpgradeThreshold
}

// NewAdvisor creates an advisor with the default thresholds.
func NewAdvisor(catalog *Catalog, calculator *Calculator) *Advisor {
	return &Advisor{
		catalog:    catalog,
		calculator: calculator,
		thresholds: DefaultThresholds(),
	}
}

// Suggest returns an upgrade suggestion, or nil when none is warranted.
//
// A cost suggestion needs the projected monthly savings on the observed
// spending to exceed the extra monthly fee. Without that, frequent support
// tickets still justify an upgrade for the support benefits alone, reported
// with zero estimated savings. PRO never gets a suggestion.
func (a *Advisor) Suggest(u Usage) (*Suggestion, error) {
	if !u.Tier.Valid() {
		return nil, ErrInvalidTier.WithMessage("unknown tier %q", u.Tier)
	}
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"monthly_bookings", u.MonthlyBookings},
		{"monthly_spending", u.MonthlySpending},
		{"support_tickets", u.SupportTickets},
	} {
		if f.value < 0 {
			return nil, sharedDomain.ErrNegativeAmount.WithMessage("%s must not be negative", f.name).WithDetail(f.name, f.value)
		}
	}

	target, ok := u.Tier.Next()
	if !ok {
		return nil, nil
	}
	threshold, ok := a.thresholds[u.Tier]
	if !ok || !threshold.qualifies(u) {
		return nil, nil
	}

	current, err := a.finalPrice(u.MonthlySpending, u.Tier)
	if err != nil {
		return nil, err
	}
	upgraded, err := a.finalPrice(u.MonthlySpending, target)
	if err != nil {
		return nil, err
	}

	projected := current - upgraded
	incremental := a.catalog.PriceFor(target, CadenceMonthly, false) - a.catalog.PriceFor(u.Tier, CadenceMonthly, false)
	net := projected - incremental

	s := &Suggestion{
		CurrentTier:      u.Tier,
		SuggestedTier:    target,
		ProjectedSavings: projected,
		IncrementalCost:  incremental,
	}
	switch {
	case net > 0:
		s.Reason = ReasonCost
		s.EstimatedSavings = net
		s.Justification = fmt.Sprintf("%s saves %d per month on your spending after its %d higher fee", target, net, incremental)
	case u.SupportTickets >= threshold.SupportTickets:
		s.Reason = ReasonSupport
		s.Justification = fmt.Sprintf("%d support tickets this month; %s includes faster support", u.SupportTickets, target)
	default:
		return nil, nil
	}
	return s, nil
}

// finalPrice prices the month's spending as one service with the tier's full
// monthly credit allotment.
func (a *Advisor) finalPrice(spending int64, tier Tier) (int64, error) {
	r, err := a.calculator.PriceService(spending, tier, a.catalog.Benefits(tier).MonthlyCredits, true)
	if err != nil {
		return 0, err
	}
	return r.FinalPrice, nil
}
