package commands

import (
	"context"

	"github.com/google/uuid"
)

// RevokeInvitationCommand withdraws a pending invitation.
type RevokeInvitationCommand struct {
	InvitationID uuid.UUID
	RevokedBy    uuid.UUID
}

// RevokeInvitationHandler handles the RevokeInvitationCommand.
type RevokeInvitationHandler struct {
	deps Dependencies
}

// NewRevokeInvitationHandler creates a new RevokeInvitationHandler.
func NewRevokeInvitationHandler(deps Dependencies) *RevokeInvitationHandler {
	return &RevokeInvitationHandler{deps: deps.withDefaults()}
}

// Handle revokes the invitation. Only the plan owner may do so, and only
// while it is still pending.
func (h *RevokeInvitationHandler) Handle(ctx context.Context, cmd RevokeInvitationCommand) error {
	var planID uuid.UUID
	err := h.deps.transact(ctx, "revoke_invitation", func(txCtx context.Context) error {
		inv, err := h.deps.Invitations.FindByID(txCtx, cmd.InvitationID)
		if err != nil {
			return err
		}
		plan, err := h.deps.Plans.FindByID(txCtx, inv.PlanID())
		if err != nil {
			return err
		}
		if err := plan.EnsureOwner(cmd.RevokedBy); err != nil {
			return err
		}

		now := h.deps.Clock.Now()
		if err := inv.Revoke(now); err != nil {
			return err
		}
		if err := h.deps.Invitations.Update(txCtx, inv); err != nil {
			return err
		}
		// The freed seat shows in the plan view, which is keyed by plan version.
		plan.Touch(now)
		if err := h.deps.Plans.Update(txCtx, plan); err != nil {
			return err
		}
		planID = plan.ID()
		return h.deps.storeEvents(txCtx, cmd.RevokedBy, inv)
	})
	if err != nil {
		return err
	}

	h.deps.Logger.InfoContext(ctx, "family invitation revoked",
		"plan_id", planID,
		"invitation_id", cmd.InvitationID,
	)
	h.deps.afterCommit(ctx, planID)
	return nil
}
