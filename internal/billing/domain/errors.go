package domain

import (
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

// Billing errors.
var (
	ErrInvalidTier    = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_input", "unknown tier")
	ErrInvalidCadence = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_input", "unknown billing cadence")

	// ErrAmountOverflow rejects amounts whose arithmetic would leave int64.
	ErrAmountOverflow = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_input", "amount too large")

	ErrSubscriptionNotFound = sharedDomain.NewError(sharedDomain.KindNotFound, "subscription_not_found", "subscription not found")
	ErrInsufficientCredits  = sharedDomain.NewError(sharedDomain.KindConflict, "insufficient_credits", "no credits remain in the current cycle")
	ErrSubscriptionCanceled = sharedDomain.NewError(sharedDomain.KindConflict, "subscription_canceled", "subscription is canceled")
)
