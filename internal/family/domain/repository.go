package domain

import (
	"context"

	"github.com/google/uuid"
)

// PlanRepository persists family plans. Writes are guarded on the version the
// plan was loaded with; a lost race returns ErrConcurrentUpdate.
type PlanRepository interface {
	Create(ctx context.Context, plan *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// FindActiveByOwner returns ErrPlanNotFound when the owner has no active plan.
	FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*Plan, error)
	Update(ctx context.Context, plan *Plan) error
}

// InvitationRepository persists invitations. Lookups by token use its digest.
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Invitation, error)
	ListByPlanAndEmail(ctx context.Context, planID uuid.UUID, email string) ([]*Invitation, error)
	Update(ctx context.Context, inv *Invitation) error
}
