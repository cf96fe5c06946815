package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

// CreditsBalance is the derived credit state of a subscription for the cycle
// containing a given instant. 0 <= Consumed <= Total always holds.
type CreditsBalance struct {
	Total      int64     `json:"total"`
	Consumed   int64     `json:"consumed"`
	Remaining  int64     `json:"remaining"`
	CycleStart time.Time `json:"cycle_start"`
}

// ConsumeResult reports how much of a requested amount was covered by
// credits. Shortfall is the part the customer pays normally.
type ConsumeResult struct {
	Requested int64          `json:"requested"`
	Applied   int64          `json:"applied"`
	Shortfall int64          `json:"shortfall"`
	Balance   CreditsBalance `json:"balance"`
}

// CycleStartFor returns the first instant of t's month in UTC.
func CycleStartFor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CycleExpired reports whether now lies at or past one month after start.
func CycleExpired(start, now time.Time) bool {
	return !now.UTC().Before(start.UTC().AddDate(0, 1, 0))
}

// Balance computes the credit balance at now. Unused credits never carry
// over: once the cycle has expired the balance reads as a fresh cycle
// starting on the first of now's month. rolled reports that case so callers
// can persist the reset.
func Balance(sub *Subscription, benefits Benefits, now time.Time) (balance CreditsBalance, rolled bool) {
	consumed := sub.CreditsConsumed
	start := sub.CycleStart
	if CycleExpired(start, now) {
		consumed = 0
		start = CycleStartFor(now)
		rolled = true
	}

	total := benefits.MonthlyCredits
	consumed = min(max(consumed, 0), total)
	return CreditsBalance{
		Total:      total,
		Consumed:   consumed,
		Remaining:  total - consumed,
		CycleStart: start,
	}, rolled
}

// RollCycle applies a lazy cycle rollover to the subscription. It reports
// whether anything changed.
func (s *Subscription) RollCycle(now time.Time) bool {
	if !CycleExpired(s.CycleStart, now) {
		return false
	}
	s.ResetCredits(now)
	return true
}

// ConsumeCredits applies up to amount from the remaining balance. Asking for
// more than remains consumes what is left and reports the shortfall; it only
// fails when nothing at all remains.
func (s *Subscription) ConsumeCredits(benefits Benefits, amount int64, now time.Time) (ConsumeResult, error) {
	if amount < 0 {
		return ConsumeResult{}, sharedDomain.ErrNegativeAmount.WithDetail("amount", amount)
	}

	s.RollCycle(now)
	balance, _ := Balance(s, benefits, now)
	if amount == 0 {
		return ConsumeResult{Balance: balance}, nil
	}
	if balance.Remaining == 0 {
		return ConsumeResult{}, ErrInsufficientCredits.
			WithDetail("requested", amount).
			WithDetail("remaining", 0).
			WithDetail("total", balance.Total)
	}

	applied := min(amount, balance.Remaining)
	s.CreditsConsumed = balance.Consumed + applied
	s.UpdatedAt = now.UTC()

	balance, _ = Balance(s, benefits, now)
	return ConsumeResult{
		Requested: amount,
		Applied:   applied,
		Shortfall: amount - applied,
		Balance:   balance,
	}, nil
}
