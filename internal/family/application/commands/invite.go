package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// InviteCommand offers a seat on a plan to an email address.
type InviteCommand struct {
	FamilyPlanID uuid.UUID
	Email        string
	InviterID    uuid.UUID
}

// InviteResult carries the one copy of the token outside the notification.
type InviteResult struct {
	InvitationID uuid.UUID
	Email        string
	Token        string
	ExpiresAt    time.Time
}

// InviteHandler handles the InviteCommand.
type InviteHandler struct {
	deps Dependencies
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(deps Dependencies) *InviteHandler {
	return &InviteHandler{deps: deps.withDefaults()}
}

// Handle issues a pending invitation when the plan still has an unreserved
// seat and the address is neither invited nor a member.
func (h *InviteHandler) Handle(ctx context.Context, cmd InviteCommand) (*InviteResult, error) {
	email, err := domain.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, err
	}

	var (
		result *InviteResult
		owner  uuid.UUID
	)
	err = h.deps.transact(ctx, "invite", func(txCtx context.Context) error {
		now := h.deps.Clock.Now()

		plan, err := h.deps.Plans.FindByID(txCtx, cmd.FamilyPlanID)
		if err != nil {
			return err
		}
		if err := plan.EnsureOwner(cmd.InviterID); err != nil {
			return err
		}
		if err := plan.EnsureActive(); err != nil {
			return err
		}

		invitations, err := h.deps.Invitations.ListByPlan(txCtx, plan.ID())
		if err != nil {
			return err
		}
		pending := 0
		for _, inv := range invitations {
			if inv.Expire(now) {
				if err := h.deps.Invitations.Update(txCtx, inv); err != nil {
					return err
				}
				continue
			}
			if inv.IsActivePending(now) {
				pending++
			}
		}
		if err := plan.CanInvite(pending); err != nil {
			return err
		}
		if err := h.ensureNotInvited(txCtx, plan.ID(), email, now); err != nil {
			return err
		}
		// Concurrent invites for one plan serialize on the plan row, so the
		// pending count above stays accurate until commit.
		plan.Touch(now)
		if err := h.deps.Plans.Update(txCtx, plan); err != nil {
			return err
		}

		token, hash, err := domain.GenerateToken()
		if err != nil {
			return err
		}
		inv, err := domain.NewInvitation(plan.ID(), email, cmd.InviterID, hash, h.deps.InvitationTTL, now)
		if err != nil {
			return err
		}
		if err := h.deps.Invitations.Create(txCtx, inv); err != nil {
			return err
		}
		if err := h.deps.storeEvents(txCtx, cmd.InviterID, inv); err != nil {
			return err
		}

		owner = plan.OwnerID()
		result = &InviteResult{
			InvitationID: inv.ID(),
			Email:        inv.Email(),
			Token:        token,
			ExpiresAt:    inv.ExpiresAt(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Metrics.Counter(observability.MetricFamilyInvitations, 1)
	h.deps.Logger.InfoContext(ctx, "family invitation sent",
		"plan_id", cmd.FamilyPlanID,
		"invitation_id", result.InvitationID,
		observability.UserIDKey, owner,
	)
	h.deps.afterCommit(ctx, cmd.FamilyPlanID, domain.Notification{
		Type:    domain.NotificationInvitation,
		PlanID:  cmd.FamilyPlanID,
		Email:   result.Email,
		Message: fmt.Sprintf("You have been invited to join a family plan. The invitation expires on %s.", result.ExpiresAt.Format(time.RFC1123)),
		Token:   result.Token,
	})
	return result, nil
}

// ensureNotInvited rejects an address with a live invitation or one whose
// accepted invitation belongs to a current member.
func (h *InviteHandler) ensureNotInvited(ctx context.Context, planID uuid.UUID, email string, now time.Time) error {
	invitations, err := h.deps.Invitations.ListByPlanAndEmail(ctx, planID, email)
	if err != nil {
		return err
	}
	for _, inv := range invitations {
		switch inv.EffectiveStatus(now) {
		case domain.InvitationPending:
			return domain.ErrAlreadyInvitedOrMember
		case domain.InvitationAccepted:
			if inv.AcceptedBy() == nil {
				continue
			}
			sub, err := h.deps.Subscriptions.FindByUserID(ctx, *inv.AcceptedBy())
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			if sub.InFamily(planID) {
				return domain.ErrAlreadyInvitedOrMember
			}
		}
	}
	return nil
}
