package domain

import (
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

// Family plan errors.
var (
	ErrInvalidToken      = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_token", "invitation token is malformed")
	ErrInvalidEmail      = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_email", "email address is malformed")
	ErrCannotRemoveOwner = sharedDomain.NewError(sharedDomain.KindInvalidInput, "cannot_remove_owner", "the plan owner cannot be removed")
	ErrFreeTierPlan      = sharedDomain.NewError(sharedDomain.KindInvalidInput, "invalid_input", "family plans require a paid tier")

	ErrPlanNotFound       = sharedDomain.NewError(sharedDomain.KindNotFound, "plan_not_found", "family plan not found")
	ErrMemberNotFound     = sharedDomain.NewError(sharedDomain.KindNotFound, "member_not_found", "user is not a member of this plan")
	ErrInvitationNotFound = sharedDomain.NewError(sharedDomain.KindNotFound, "invitation_not_found", "invitation not found")

	ErrAlreadyOwnsPlan            = sharedDomain.NewError(sharedDomain.KindConflict, "already_owns_plan", "user already owns an active family plan")
	ErrPlanFull                   = sharedDomain.NewError(sharedDomain.KindConflict, "plan_full", "family plan has no free seats")
	ErrAlreadyInvitedOrMember     = sharedDomain.NewError(sharedDomain.KindConflict, "already_invited_or_member", "email already has a pending invitation or belongs to a member")
	ErrInvalidOrExpiredInvitation = sharedDomain.NewError(sharedDomain.KindConflict, "invalid_or_expired_invitation", "invitation is not pending or has expired")
	ErrAlreadyInFamilyPlan        = sharedDomain.NewError(sharedDomain.KindConflict, "already_in_family_plan", "user already belongs to a family plan")
	ErrPlanCanceled               = sharedDomain.NewError(sharedDomain.KindConflict, "plan_canceled", "family plan is canceled")

	ErrNotPlanOwner = sharedDomain.ErrNotAuthorized.WithMessage("only the plan owner may do this")
)
