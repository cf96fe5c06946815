package domain

import (
	"time"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
)

// PlanStatus is the lifecycle state of a family plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "ACTIVE"
	PlanCanceled PlanStatus = "CANCELED"
)

// Plan is a family plan: one paying owner sharing a paid tier with up to
// MaxMembers-1 others. CurrentMembers counts the owner and never exceeds
// MaxMembers.
type Plan struct {
	sharedDomain.BaseAggregateRoot
	ownerID          uuid.UUID
	tier             billing.Tier
	cadence          billing.Cadence
	maxMembers       int
	currentMembers   int
	sharedCreditPool int64
	status           PlanStatus
	canceledAt       *time.Time
}

// NewPlan opens a plan for ownerID. Seat count and credit pool come from the
// catalog: the pool is the tier's monthly credits for every seat.
func NewPlan(catalog *billing.Catalog, ownerID uuid.UUID, tier billing.Tier, cadence billing.Cadence, now time.Time) (*Plan, error) {
	if !tier.Valid() {
		return nil, billing.ErrInvalidTier.WithMessage("unknown tier %q", tier)
	}
	if !tier.IsPaid() {
		return nil, ErrFreeTierPlan
	}
	if cadence == "" {
		cadence = billing.CadenceMonthly
	}

	maxMembers := catalog.MaxMembers(tier)
	p := &Plan{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		ownerID:           ownerID,
		tier:              tier,
		cadence:           cadence,
		maxMembers:        maxMembers,
		currentMembers:    1,
		sharedCreditPool:  catalog.Benefits(tier).MonthlyCredits * int64(maxMembers),
		status:            PlanActive,
	}
	p.AddDomainEvent(NewPlanCreated(p, now))
	return p, nil
}

// RehydratePlan recreates a plan from persisted state.
func RehydratePlan(
	id, ownerID uuid.UUID,
	tier billing.Tier,
	cadence billing.Cadence,
	maxMembers, currentMembers int,
	sharedCreditPool int64,
	status PlanStatus,
	canceledAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) *Plan {
	return &Plan{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(id, createdAt, updatedAt, version),
		ownerID:           ownerID,
		tier:              tier,
		cadence:           cadence,
		maxMembers:        maxMembers,
		currentMembers:    currentMembers,
		sharedCreditPool:  sharedCreditPool,
		status:            status,
		canceledAt:        canceledAt,
	}
}

func (p *Plan) OwnerID() uuid.UUID        { return p.ownerID }
func (p *Plan) Tier() billing.Tier        { return p.tier }
func (p *Plan) Cadence() billing.Cadence  { return p.cadence }
func (p *Plan) MaxMembers() int           { return p.maxMembers }
func (p *Plan) CurrentMembers() int       { return p.currentMembers }
func (p *Plan) SharedCreditPool() int64   { return p.sharedCreditPool }
func (p *Plan) Status() PlanStatus        { return p.status }
func (p *Plan) CanceledAt() *time.Time    { return p.canceledAt }
func (p *Plan) IsActive() bool            { return p.status == PlanActive }
func (p *Plan) IsOwner(id uuid.UUID) bool { return p.ownerID == id }

// EnsureOwner fails unless actorID owns the plan.
func (p *Plan) EnsureOwner(actorID uuid.UUID) error {
	if !p.IsOwner(actorID) {
		return ErrNotPlanOwner
	}
	return nil
}

// EnsureActive fails for canceled plans.
func (p *Plan) EnsureActive() error {
	if !p.IsActive() {
		return ErrPlanCanceled
	}
	return nil
}

// CanInvite reports whether another invitation fits next to the current
// members and pendingInvites still-pending invitations.
func (p *Plan) CanInvite(pendingInvites int) error {
	if total := p.currentMembers + pendingInvites; total >= p.maxMembers {
		return ErrPlanFull.
			WithDetail("current_members", int64(p.currentMembers)).
			WithDetail("pending_invitations", int64(pendingInvites)).
			WithDetail("max_members", int64(p.maxMembers))
	}
	return nil
}

// AddMember takes one seat.
func (p *Plan) AddMember(now time.Time) error {
	if err := p.EnsureActive(); err != nil {
		return err
	}
	if p.currentMembers >= p.maxMembers {
		return ErrPlanFull.
			WithDetail("current_members", int64(p.currentMembers)).
			WithDetail("max_members", int64(p.maxMembers))
	}
	p.currentMembers++
	p.Touch(now)
	return nil
}

// RemoveMember frees the seat held by memberID. The owner's seat is never
// released, so the count stays at one or more.
func (p *Plan) RemoveMember(memberID uuid.UUID, now time.Time) error {
	if err := p.EnsureActive(); err != nil {
		return err
	}
	if p.IsOwner(memberID) {
		return ErrCannotRemoveOwner
	}
	if p.currentMembers > 1 {
		p.currentMembers--
	}
	p.Touch(now)
	p.AddDomainEvent(NewMemberRemoved(p, memberID, now))
	return nil
}

// Cancel closes the plan. memberIDs lists the non-owner members being
// downgraded alongside it.
func (p *Plan) Cancel(memberIDs []uuid.UUID, now time.Time) error {
	if err := p.EnsureActive(); err != nil {
		return err
	}
	at := now.UTC()
	p.status = PlanCanceled
	p.canceledAt = &at
	p.currentMembers = 1
	p.Touch(now)
	p.AddDomainEvent(NewPlanCanceled(p, memberIDs, now))
	return nil
}
