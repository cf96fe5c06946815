package commands

import (
	"context"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// RemoveMemberCommand takes a member off a plan.
type RemoveMemberCommand struct {
	FamilyPlanID uuid.UUID
	MemberUserID uuid.UUID
	RemovedBy    uuid.UUID
}

// RemoveMemberHandler handles the RemoveMemberCommand.
type RemoveMemberHandler struct {
	deps Dependencies
}

// NewRemoveMemberHandler creates a new RemoveMemberHandler.
func NewRemoveMemberHandler(deps Dependencies) *RemoveMemberHandler {
	return &RemoveMemberHandler{deps: deps.withDefaults()}
}

// Handle downgrades the member straight to FREE and frees the seat. There is
// no proration for the rest of the cycle.
func (h *RemoveMemberHandler) Handle(ctx context.Context, cmd RemoveMemberCommand) error {
	err := h.deps.transact(ctx, "remove_member", func(txCtx context.Context) error {
		now := h.deps.Clock.Now()

		plan, err := h.deps.Plans.FindByID(txCtx, cmd.FamilyPlanID)
		if err != nil {
			return err
		}
		if err := plan.EnsureOwner(cmd.RemovedBy); err != nil {
			return err
		}
		if plan.IsOwner(cmd.MemberUserID) {
			return domain.ErrCannotRemoveOwner
		}
		if err := plan.EnsureActive(); err != nil {
			return err
		}

		sub, err := h.deps.Subscriptions.FindByUserID(txCtx, cmd.MemberUserID)
		if isNotFound(err) {
			return domain.ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		if !sub.InFamily(plan.ID()) {
			return domain.ErrMemberNotFound
		}

		sub.LeaveFamily(now)
		if err := h.deps.Subscriptions.Save(txCtx, sub); err != nil {
			return err
		}
		if err := plan.RemoveMember(cmd.MemberUserID, now); err != nil {
			return err
		}
		if err := h.deps.Plans.Update(txCtx, plan); err != nil {
			return err
		}
		return h.deps.storeEvents(txCtx, cmd.RemovedBy, plan)
	})
	if err != nil {
		return err
	}

	h.deps.Logger.InfoContext(ctx, "family member removed",
		"plan_id", cmd.FamilyPlanID,
		observability.UserIDKey, cmd.MemberUserID,
	)
	h.deps.afterCommit(ctx, cmd.FamilyPlanID,
		domain.ToUser(cmd.MemberUserID, cmd.FamilyPlanID, domain.NotificationMemberRemoved,
			"You have been removed from a family plan. Your subscription is now FREE."),
	)
	return nil
}
