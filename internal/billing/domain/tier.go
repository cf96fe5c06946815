package domain

import "strings"

// Tier is a subscription level. Tiers are ordered FREE < PLUS < PRO.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPlus Tier = "PLUS"
	TierPro  Tier = "PRO"
)

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidTier.WithMessage("unknown tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// IsPaid reports whether the tier carries a subscription fee.
func (t Tier) IsPaid() bool {
	return t == TierPlus || t == TierPro
}

// Less reports whether t ranks below other.
func (t Tier) Less(other Tier) bool {
	return t.rank() < other.rank()
}

// Next returns the tier one level up. PRO is terminal.
func (t Tier) Next() (Tier, bool) {
	switch t {
	case TierFree:
		return TierPlus, true
	case TierPlus:
		return TierPro, true
	default:
		return "", false
	}
}

func (t Tier) rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPlus:
		return 1
	case TierPro:
		return 2
	default:
		return -1
	}
}

func (t Tier) String() string { return string(t) }

// Cadence is the billing interval of a subscription.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// ParseCadence accepts a cadence name in any case. Empty defaults to monthly.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CadenceMonthly, nil
	case CadenceMonthly, CadenceYearly:
		return c, nil
	default:
		return "", ErrInvalidCadence.WithMessage("unknown billing cadence %q", s)
	}
}
