package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	planAggregateType       = "FamilyPlan"
	invitationAggregateType = "FamilyInvitation"
)

// Routing keys for family events.
const (
	RoutingKeyPlanCreated        = "family.plan.created"
	RoutingKeyPlanCanceled       = "family.plan.canceled"
	RoutingKeyInvitationCreated  = "family.invitation.created"
	RoutingKeyInvitationAccepted = "family.invitation.accepted"
	RoutingKeyInvitationRevoked  = "family.invitation.revoked"
	RoutingKeyMemberRemoved      = "family.member.removed"
)

// PlanCreatedEvent is emitted when an owner opens a family plan.
type PlanCreatedEvent struct {
	sharedDomain.BaseEvent
	PlanID     uuid.UUID `json:"plan_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Tier       string    `json:"tier"`
	MaxMembers int       `json:"max_members"`
}

// NewPlanCreated creates a PlanCreatedEvent.
func NewPlanCreated(p *Plan, now time.Time) *PlanCreatedEvent {
	return &PlanCreatedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(p.ID(), planAggregateType, RoutingKeyPlanCreated, now),
		PlanID:     p.ID(),
		OwnerID:    p.OwnerID(),
		Tier:       string(p.Tier()),
		MaxMembers: p.MaxMembers(),
	}
}

// PlanCanceledEvent is emitted when the owner cancels the plan.
type PlanCanceledEvent struct {
	sharedDomain.BaseEvent
	PlanID    uuid.UUID   `json:"plan_id"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// NewPlanCanceled creates a PlanCanceledEvent.
func NewPlanCanceled(p *Plan, memberIDs []uuid.UUID, now time.Time) *PlanCanceledEvent {
	return &PlanCanceledEvent{
		BaseEvent: sharedDomain.NewBaseEvent(p.ID(), planAggregateType, RoutingKeyPlanCanceled, now),
		PlanID:    p.ID(),
		OwnerID:   p.OwnerID(),
		MemberIDs: memberIDs,
	}
}

// MemberRemovedEvent is emitted when the owner removes a member.
type MemberRemovedEvent struct {
	sharedDomain.BaseEvent
	PlanID         uuid.UUID `json:"plan_id"`
	MemberID       uuid.UUID `json:"member_id"`
	CurrentMembers int       `json:"current_members"`
}

// NewMemberRemoved creates a MemberRemovedEvent.
func NewMemberRemoved(p *Plan, memberID uuid.UUID, now time.Time) *MemberRemovedEvent {
	return &MemberRemovedEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(p.ID(), planAggregateType, RoutingKeyMemberRemoved, now),
		PlanID:         p.ID(),
		MemberID:       memberID,
		CurrentMembers: p.CurrentMembers(),
	}
}

// InvitationCreatedEvent is emitted when an invitation is issued. The token is
// never part of an event.
type InvitationCreatedEvent struct {
	sharedDomain.BaseEvent
	InvitationID uuid.UUID `json:"invitation_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	Email        string    `json:"email"`
	InviterID    uuid.UUID `json:"inviter_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewInvitationCreated creates an InvitationCreatedEvent.
func NewInvitationCreated(inv *Invitation, now time.Time) *InvitationCreatedEvent {
	return &InvitationCreatedEvent{
		BaseEvent:    sharedDomain.NewBaseEvent(inv.ID(), invitationAggregateType, RoutingKeyInvitationCreated, now),
		InvitationID: inv.ID(),
		PlanID:       inv.PlanID(),
		Email:        inv.Email(),
		InviterID:    inv.InviterID(),
		ExpiresAt:    inv.ExpiresAt(),
	}
}

// InvitationAcceptedEvent is emitted when an invitee joins the plan.
type InvitationAcceptedEvent struct {
	sharedDomain.BaseEvent
	InvitationID uuid.UUID `json:"invitation_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	UserID       uuid.UUID `json:"user_id"`
}

// NewInvitationAccepted creates an InvitationAcceptedEvent.
func NewInvitationAccepted(inv *Invitation, userID uuid.UUID, now time.Time) *InvitationAcceptedEvent {
	return &InvitationAcceptedEvent{
		BaseEvent:    sharedDomain.NewBaseEvent(inv.ID(), invitationAggregateType, RoutingKeyInvitationAccepted, now),
		InvitationID: inv.ID(),
		PlanID:       inv.PlanID(),
		UserID:       userID,
	}
}

// InvitationRevokedEvent is emitted when a pending invitation is withdrawn.
type InvitationRevokedEvent struct {
	sharedDomain.BaseEvent
	InvitationID uuid.UUID `json:"invitation_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	Email        string    `json:"email"`
}

// NewInvitationRevoked creates an InvitationRevokedEvent.
func NewInvitationRevoked(inv *Invitation, now time.Time) *InvitationRevokedEvent {
	return &InvitationRevokedEvent{
		BaseEvent:    sharedDomain.NewBaseEvent(inv.ID(), invitationAggregateType, RoutingKeyInvitationRevoked, now),
		InvitationID: inv.ID(),
		PlanID:       inv.PlanID(),
		Email:        inv.Email(),
	}
}
