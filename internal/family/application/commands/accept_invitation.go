package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedApplication "github.com/felixgeelhaar/perks/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// AcceptInvitationCommand redeems an invitation token for a user.
type AcceptInvitationCommand struct {
	Token  string
	UserID uuid.UUID
}

// AcceptInvitationResult describes the joined plan.
type AcceptInvitationResult struct {
	PlanID         uuid.UUID
	InvitationID   uuid.UUID
	CurrentMembers int
}

// AcceptInvitationHandler handles the AcceptInvitationCommand.
type AcceptInvitationHandler struct {
	deps Dependencies
}

// NewAcceptInvitationHandler creates a new AcceptInvitationHandler.
func NewAcceptInvitationHandler(deps Dependencies) *AcceptInvitationHandler {
	return &AcceptInvitationHandler{deps: deps.withDefaults()}
}

// Handle accepts the invitation, links the user's subscription to the plan
// and takes a seat. All three writes commit together or not at all.
func (h *AcceptInvitationHandler) Handle(ctx context.Context, cmd AcceptInvitationCommand) (*AcceptInvitationResult, error) {
	hash, err := domain.HashToken(cmd.Token)
	if err != nil {
		return nil, err
	}
	if cmd.UserID == uuid.Nil {
		return nil, sharedDomain.ErrInvalidInput.WithMessage("user id is required")
	}

	var (
		result  *AcceptInvitationResult
		ownerID uuid.UUID
		expired uuid.UUID
	)
	err = h.deps.transact(ctx, "accept_invitation", func(txCtx context.Context) error {
		now := h.deps.Clock.Now()
		expired = uuid.Nil

		inv, err := h.deps.Invitations.FindByTokenHash(txCtx, hash)
		if errors.Is(err, domain.ErrInvitationNotFound) {
			return domain.ErrInvalidOrExpiredInvitation
		}
		if err != nil {
			return err
		}
		if inv.Status() != domain.InvitationPending {
			return domain.ErrInvalidOrExpiredInvitation
		}
		if inv.IsExpiredAt(now) {
			expired = inv.ID()
			return domain.ErrInvalidOrExpiredInvitation
		}

		sub, err := h.deps.findOrNewSubscription(txCtx, cmd.UserID, now)
		if err != nil {
			return err
		}
		if sub.IsFamilyMember() {
			return domain.ErrAlreadyInFamilyPlan
		}

		plan, err := h.deps.Plans.FindByID(txCtx, inv.PlanID())
		if err != nil {
			return err
		}
		if err := plan.AddMember(now); err != nil {
			return err
		}
		if err := inv.Accept(cmd.UserID, now); err != nil {
			return err
		}

		if err := h.deps.Invitations.Update(txCtx, inv); err != nil {
			return err
		}
		sub.JoinFamily(plan.ID(), plan.Tier(), plan.Cadence(), now)
		if err := h.deps.Subscriptions.Save(txCtx, sub); err != nil {
			return err
		}
		if err := h.deps.Plans.Update(txCtx, plan); err != nil {
			return err
		}
		if err := h.deps.storeEvents(txCtx, cmd.UserID, inv); err != nil {
			return err
		}

		ownerID = plan.OwnerID()
		result = &AcceptInvitationResult{
			PlanID:         plan.ID(),
			InvitationID:   inv.ID(),
			CurrentMembers: plan.CurrentMembers(),
		}
		return nil
	})
	if expired != uuid.Nil {
		h.markExpired(ctx, expired)
	}
	if err != nil {
		return nil, err
	}

	h.deps.Metrics.Counter(observability.MetricFamilyMembers, 1)
	h.deps.Logger.InfoContext(ctx, "family invitation accepted",
		"plan_id", result.PlanID,
		"invitation_id", result.InvitationID,
		observability.UserIDKey, cmd.UserID,
	)
	h.deps.afterCommit(ctx, result.PlanID,
		domain.ToUser(ownerID, result.PlanID, domain.NotificationMemberJoined, "A new member joined your family plan."),
	)
	return result, nil
}

// markExpired stores a lazily detected expiry in its own unit. The caller has
// already been told the invitation is unusable, so failures are only logged.
func (h *AcceptInvitationHandler) markExpired(ctx context.Context, invitationID uuid.UUID) {
	err := sharedApplication.WithUnitOfWork(ctx, h.deps.UnitOfWork, func(txCtx context.Context) error {
		inv, err := h.deps.Invitations.FindByID(txCtx, invitationID)
		if err != nil {
			return err
		}
		if !inv.Expire(h.deps.Clock.Now()) {
			return nil
		}
		return h.deps.Invitations.Update(txCtx, inv)
	})
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "failed to mark invitation expired",
			"invitation_id", invitationID,
			"error", err,
		)
	}
}
