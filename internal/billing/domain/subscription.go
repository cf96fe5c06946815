package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the current billing state.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is the one billing record per subscriber. It owns the
// subscriber's credit consumption for the current cycle.
//
// Version is the value read from storage; zero means the record has not been
// stored yet. Repositories write guarded on it and bump it on success.
type Subscription struct {
	UserID          uuid.UUID
	Tier            Tier
	FamilyPlanID    *uuid.UUID
	Cadence         Cadence
	PaymentMethod   string
	Status          SubscriptionStatus
	CreditsConsumed int64
	CycleStart      time.Time
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSubscription creates a FREE, active subscription whose first credit
// cycle starts at the beginning of now's month.
func NewSubscription(userID uuid.UUID, now time.Time) *Subscription {
	now = now.UTC()
	return &Subscription{
		UserID:     userID,
		Tier:       TierFree,
		Cadence:    CadenceMonthly,
		Status:     SubscriptionActive,
		CycleStart: CycleStartFor(now),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsFamilyMember reports whether the subscription is linked to a family plan.
func (s *Subscription) IsFamilyMember() bool {
	return s.FamilyPlanID != nil
}

// InFamily reports whether the subscription is linked to planID.
func (s *Subscription) InFamily(planID uuid.UUID) bool {
	return s.FamilyPlanID != nil && *s.FamilyPlanID == planID
}

// ChangeTier moves a standalone subscription to tier and starts a fresh
// credit cycle.
func (s *Subscription) ChangeTier(tier Tier, cadence Cadence, paymentMethod string, now time.Time) {
	s.Tier = tier
	s.Cadence = cadence
	if paymentMethod != "" {
		s.PaymentMethod = paymentMethod
	}
	s.Status = SubscriptionActive
	s.ResetCredits(now)
}

// JoinFamily links the subscription to a plan and takes over its tier.
func (s *Subscription) JoinFamily(planID uuid.UUID, tier Tier, cadence Cadence, now time.Time) {
	id := planID
	s.FamilyPlanID = &id
	s.ChangeTier(tier, cadence, "", now)
}

// LeaveFamily clears the plan link and downgrades straight to FREE. There is
// no grace period and no partial-month credit.
func (s *Subscription) LeaveFamily(now time.Time) {
	s.FamilyPlanID = nil
	s.ChangeTier(TierFree, CadenceMonthly, "", now)
}

// ResetCredits zeroes consumption and restarts the cycle at now's month.
func (s *Subscription) ResetCredits(now time.Time) {
	now = now.UTC()
	s.CreditsConsumed = 0
	s.CycleStart = CycleStartFor(now)
	s.UpdatedAt = now
}

// Cancel soft-cancels the subscription. Records are never deleted.
func (s *Subscription) Cancel(now time.Time) {
	s.Status = SubscriptionCanceled
	s.UpdatedAt = now.UTC()
}
