package commands

import (
	"context"
	"errors"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// CreatePlanCommand opens a family plan for its owner.
type CreatePlanCommand struct {
	OwnerID       uuid.UUID
	Tier          billing.Tier
	Cadence       billing.Cadence
	PaymentMethod string
}

// CreatePlanResult describes the new plan.
type CreatePlanResult struct {
	PlanID           uuid.UUID
	MaxMembers       int
	SharedCreditPool int64
}

// CreatePlanHandler handles the CreatePlanCommand.
type CreatePlanHandler struct {
	deps Dependencies
}

// NewCreatePlanHandler creates a new CreatePlanHandler.
func NewCreatePlanHandler(deps Dependencies) *CreatePlanHandler {
	return &CreatePlanHandler{deps: deps.withDefaults()}
}

// Handle inserts the plan and moves the owner's subscription onto it in one
// unit of work.
func (h *CreatePlanHandler) Handle(ctx context.Context, cmd CreatePlanCommand) (*CreatePlanResult, error) {
	if cmd.OwnerID == uuid.Nil {
		return nil, sharedDomain.ErrInvalidInput.WithMessage("owner id is required")
	}
	if cmd.PaymentMethod == "" {
		return nil, sharedDomain.ErrInvalidInput.WithMessage("payment method is required")
	}

	var result *CreatePlanResult
	err := h.deps.transact(ctx, "create_plan", func(txCtx context.Context) error {
		now := h.deps.Clock.Now()

		_, err := h.deps.Plans.FindActiveByOwner(txCtx, cmd.OwnerID)
		if err == nil {
			return domain.ErrAlreadyOwnsPlan
		}
		if !errors.Is(err, domain.ErrPlanNotFound) {
			return err
		}

		sub, err := h.deps.findOrNewSubscription(txCtx, cmd.OwnerID, now)
		if err != nil {
			return err
		}
		if sub.IsFamilyMember() {
			return domain.ErrAlreadyInFamilyPlan
		}

		plan, err := domain.NewPlan(h.deps.Catalog, cmd.OwnerID, cmd.Tier, cmd.Cadence, now)
		if err != nil {
			return err
		}
		if err := h.deps.Plans.Create(txCtx, plan); err != nil {
			return err
		}

		sub.JoinFamily(plan.ID(), plan.Tier(), plan.Cadence(), now)
		sub.PaymentMethod = cmd.PaymentMethod
		if err := h.deps.Subscriptions.Save(txCtx, sub); err != nil {
			return err
		}

		if err := h.deps.storeEvents(txCtx, cmd.OwnerID, plan); err != nil {
			return err
		}

		result = &CreatePlanResult{
			PlanID:           plan.ID(),
			MaxMembers:       plan.MaxMembers(),
			SharedCreditPool: plan.SharedCreditPool(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "family plan created",
		"plan_id", result.PlanID,
		observability.UserIDKey, cmd.OwnerID,
		"tier", cmd.Tier,
	)
	h.deps.afterCommit(ctx, result.PlanID)
	return result, nil
}
