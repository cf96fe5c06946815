package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/perks/internal/app"
	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/application/commands"
	"github.com/felixgeelhaar/perks/internal/family/application/queries"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
)

// FamilyPlanRequest is the body of POST /family-plan. UserID is the acting
// user; the other fields are read according to Action.
type FamilyPlanRequest struct {
	Action        string    `json:"action"`
	UserID        uuid.UUID `json:"userId"`
	Tier          string    `json:"tier,omitempty"`
	Cadence       string    `json:"cadence,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	FamilyPlanID  uuid.UUID `json:"familyPlanId,omitempty"`
	Email         string    `json:"email,omitempty"`
	Token         string    `json:"token,omitempty"`
	MemberUserID  uuid.UUID `json:"memberUserId,omitempty"`
	InvitationID  uuid.UUID `json:"invitationId,omitempty"`
}

// FamilyHandler serves the family plan endpoints.
type FamilyHandler struct {
	handlers app.FamilyHandlers
	logger   *slog.Logger
}

// NewFamilyHandler creates a new FamilyHandler.
func NewFamilyHandler(handlers app.FamilyHandlers, logger *slog.Logger) *FamilyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FamilyHandler{handlers: handlers, logger: logger}
}

// Command handles POST /family-plan.
func (h *FamilyHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req FamilyPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	switch req.Action {
	case "create":
		h.create(w, r, req)
	case "invite":
		h.invite(w, r, req)
	case "accept_invitation":
		h.accept(w, r, req)
	case "remove_member":
		h.remove(w, r, req)
	case "cancel":
		h.cancel(w, r, req)
	case "revoke_invitation":
		h.revoke(w, r, req)
	default:
		writeError(w, r, h.logger, errUnknownAction)
	}
}

func (h *FamilyHandler) create(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	tier, err := billing.ParseTier(req.Tier)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var cadence billing.Cadence
	if req.Cadence != "" {
		if cadence, err = billing.ParseCadence(req.Cadence); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	res, err := h.handlers.CreatePlan.Handle(r.Context(), commands.CreatePlanCommand{
		OwnerID:       req.UserID,
		Tier:          tier,
		Cadence:       cadence,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"familyPlanId":     res.PlanID,
		"maxMembers":       res.MaxMembers,
		"sharedCreditPool": res.SharedCreditPool,
	})
}

// invite never returns the token; it reaches the invitee only through the
// notification.
func (h *FamilyHandler) invite(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	res, err := h.handlers.Invite.Handle(r.Context(), commands.InviteCommand{
		FamilyPlanID: req.FamilyPlanID,
		Email:        req.Email,
		InviterID:    req.UserID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"invitationId": res.InvitationID,
		"email":        res.Email,
		"expiresAt":    res.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *FamilyHandler) accept(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	res, err := h.handlers.AcceptInvitation.Handle(r.Context(), commands.AcceptInvitationCommand{
		Token:  req.Token,
		UserID: req.UserID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"familyPlanId":   res.PlanID,
		"invitationId":   res.InvitationID,
		"currentMembers": res.CurrentMembers,
	})
}

func (h *FamilyHandler) remove(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	err := h.handlers.RemoveMember.Handle(r.Context(), commands.RemoveMemberCommand{
		FamilyPlanID: req.FamilyPlanID,
		MemberUserID: req.MemberUserID,
		RemovedBy:    req.UserID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": req.MemberUserID})
}

func (h *FamilyHandler) cancel(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	res, err := h.handlers.CancelPlan.Handle(r.Context(), commands.CancelPlanCommand{OwnerID: req.UserID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"familyPlanId":       res.PlanID,
		"downgradedMembers":  res.DowngradedMembers,
		"revokedInvitations": res.RevokedInvitations,
	})
}

func (h *FamilyHandler) revoke(w http.ResponseWriter, r *http.Request, req FamilyPlanRequest) {
	err := h.handlers.RevokeInvitation.Handle(r.Context(), commands.RevokeInvitationCommand{
		InvitationID: req.InvitationID,
		RevokedBy:    req.UserID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": req.InvitationID})
}

// Get handles GET /family-plan?userId=|familyPlanId=.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	var query queries.GetPlanQuery
	var err error
	if query.UserID, err = optionalUUID(r, "userId"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if query.FamilyPlanID, err = optionalUUID(r, "familyPlanId"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.handlers.GetPlan.Handle(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func optionalUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, sharedDomain.ErrInvalidInput.WithMessage("%s is not a valid id", name)
	}
	return id, nil
}
