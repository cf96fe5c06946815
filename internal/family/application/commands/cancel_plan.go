package commands

import (
	"context"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// CancelPlanCommand closes the owner's active plan.
type CancelPlanCommand struct {
	OwnerID uuid.UUID
}

// CancelPlanResult lists who was downgraded.
type CancelPlanResult struct {
	PlanID             uuid.UUID
	DowngradedMembers  []uuid.UUID
	RevokedInvitations int
}

// CancelPlanHandler handles the CancelPlanCommand.
type CancelPlanHandler struct {
	deps Dependencies
}

// NewCancelPlanHandler creates a new CancelPlanHandler.
func NewCancelPlanHandler(deps Dependencies) *CancelPlanHandler {
	return &CancelPlanHandler{deps: deps.withDefaults()}
}

// Handle cancels the plan, downgrades everyone on it to FREE and revokes the
// invitations still pending.
func (h *CancelPlanHandler) Handle(ctx context.Context, cmd CancelPlanCommand) (*CancelPlanResult, error) {
	var result *CancelPlanResult
	err := h.deps.transact(ctx, "cancel_plan", func(txCtx context.Context) error {
		now := h.deps.Clock.Now()

		plan, err := h.deps.Plans.FindActiveByOwner(txCtx, cmd.OwnerID)
		if err != nil {
			return err
		}

		subs, err := h.deps.Subscriptions.FindByFamilyPlanID(txCtx, plan.ID())
		if err != nil {
			return err
		}
		var members []uuid.UUID
		for _, sub := range subs {
			sub.LeaveFamily(now)
			if err := h.deps.Subscriptions.Save(txCtx, sub); err != nil {
				return err
			}
			if !plan.IsOwner(sub.UserID) {
				members = append(members, sub.UserID)
			}
		}

		invitations, err := h.deps.Invitations.ListByPlan(txCtx, plan.ID())
		if err != nil {
			return err
		}
		sources := []eventSource{plan}
		revoked := 0
		for _, inv := range invitations {
			if inv.Status() != domain.InvitationPending {
				continue
			}
			if !inv.Expire(now) {
				if err := inv.Revoke(now); err != nil {
					return err
				}
				revoked++
				sources = append(sources, inv)
			}
			if err := h.deps.Invitations.Update(txCtx, inv); err != nil {
				return err
			}
		}

		if err := plan.Cancel(members, now); err != nil {
			return err
		}
		if err := h.deps.Plans.Update(txCtx, plan); err != nil {
			return err
		}
		if err := h.deps.storeEvents(txCtx, cmd.OwnerID, sources...); err != nil {
			return err
		}

		result = &CancelPlanResult{
			PlanID:             plan.ID(),
			DowngradedMembers:  members,
			RevokedInvitations: revoked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "family plan canceled",
		"plan_id", result.PlanID,
		observability.UserIDKey, cmd.OwnerID,
		"members", len(result.DowngradedMembers),
	)

	notifications := make([]domain.Notification, 0, len(result.DowngradedMembers)+1)
	for _, memberID := range result.DowngradedMembers {
		notifications = append(notifications, domain.ToUser(memberID, result.PlanID, domain.NotificationPlanCanceled,
			"The family plan you belonged to was canceled. Your subscription is now "+string(billing.TierFree)+"."))
	}
	notifications = append(notifications, domain.ToUser(cmd.OwnerID, result.PlanID, domain.NotificationPlanCanceled,
		"Your family plan was canceled."))
	h.deps.afterCommit(ctx, result.PlanID, notifications...)
	return result, nil
}
