package api

import (
	"log/slog"
	"net/http"
	"time"

	billingApp "github.com/felixgeelhaar/perks/internal/billing/application"
	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
)

// PriceServiceRequest prices one service. With a UserID the tier and
// credits come from the user's subscription; otherwise Tier and Credits are
// used as given.
type PriceServiceRequest struct {
	OriginalPrice int64     `json:"originalPrice"`
	UserID        uuid.UUID `json:"userId,omitempty"`
	Tier          string    `json:"tier,omitempty"`
	Credits       int64     `json:"credits,omitempty"`
	UseCredits    bool      `json:"useCredits"`
}

// PriceBundleRequest prices services booked together.
type PriceBundleRequest struct {
	Services []int64 `json:"services"`
	Tier     string  `json:"tier"`
	Credits  int64   `json:"credits,omitempty"`
}

// ConsumeCreditsRequest draws credits from a user's balance.
type ConsumeCreditsRequest struct {
	UserID uuid.UUID `json:"userId"`
	Amount int64     `json:"amount"`
}

// SubscribeRequest selects a standalone tier for a user.
type SubscribeRequest struct {
	UserID        uuid.UUID `json:"userId"`
	Tier          string    `json:"tier"`
	Cadence       string    `json:"cadence,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
}

// UserRequest names the user an operation applies to.
type UserRequest struct {
	UserID uuid.UUID `json:"userId"`
}

// SubscriptionResponse is a subscription as clients see it. The payment
// method is reduced to whether one is on file.
type SubscriptionResponse struct {
	UserID           uuid.UUID  `json:"userId"`
	Tier             string     `json:"tier"`
	Cadence          string     `json:"cadence"`
	Status           string     `json:"status"`
	FamilyPlanID     *uuid.UUID `json:"familyPlanId,omitempty"`
	HasPaymentMethod bool       `json:"hasPaymentMethod"`
	CreditsConsumed  int64      `json:"creditsConsumed"`
	CycleStart       time.Time  `json:"cycleStart"`
}

func toSubscriptionResponse(sub *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		UserID:           sub.UserID,
		Tier:             sub.Tier.String(),
		Cadence:          string(sub.Cadence),
		Status:           string(sub.Status),
		FamilyPlanID:     sub.FamilyPlanID,
		HasPaymentMethod: sub.PaymentMethod != "",
		CreditsConsumed:  sub.CreditsConsumed,
		CycleStart:       sub.CycleStart,
	}
}

// UpgradeAdviceRequest describes last month's usage.
type UpgradeAdviceRequest struct {
	Tier            string `json:"tier"`
	MonthlyBookings int64  `json:"monthlyBookings"`
	MonthlySpending int64  `json:"monthlySpending"`
	SupportTickets  int64  `json:"supportTickets"`
}

// BillingHandler serves pricing, credits and upgrade advice.
type BillingHandler struct {
	service *billingApp.Service
	clock   sharedDomain.Clock
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(service *billingApp.Service, clock sharedDomain.Clock, logger *slog.Logger) *BillingHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{service: service, clock: clock, logger: logger}
}

// PriceService handles POST /pricing/service.
func (h *BillingHandler) PriceService(w http.ResponseWriter, r *http.Request) {
	var req PriceServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var (
		result billing.PricingResult
		err    error
	)
	if req.UserID != uuid.Nil {
		result, err = h.service.Quote(r.Context(), req.UserID, req.OriginalPrice, req.UseCredits)
	} else {
		var tier billing.Tier
		if tier, err = billing.ParseTier(req.Tier); err == nil {
			result, err = h.service.PriceService(r.Context(), req.OriginalPrice, tier, req.Credits, req.UseCredits)
		}
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PriceBundle handles POST /pricing/bundle.
func (h *BillingHandler) PriceBundle(w http.ResponseWriter, r *http.Request) {
	var req PriceBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tier, err := billing.ParseTier(req.Tier)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.PriceBundle(r.Context(), req.Services, tier, req.Credits)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Balance handles GET /credits?userId=.
func (h *BillingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := optionalUUID(r, "userId")
	if err == nil && userID == uuid.Nil {
		err = sharedDomain.ErrInvalidInput.WithMessage("userId is required")
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balance, err := h.service.Ledger().Balance(r.Context(), userID, h.clock.Now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// Consume handles POST /credits/consume.
func (h *BillingHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeCreditsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Ledger().Consume(r.Context(), req.UserID, req.Amount, h.clock.Now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Advise handles POST /upgrade-advice. No suggestion is a 200 with a null
// suggestion.
func (h *BillingHandler) Advise(w http.ResponseWriter, r *http.Request) {
	var req UpgradeAdviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tier, err := billing.ParseTier(req.Tier)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	suggestion, err := h.service.Advise(r.Context(), billing.Usage{
		Tier:            tier,
		MonthlyBookings: req.MonthlyBookings,
		MonthlySpending: req.MonthlySpending,
		SupportTickets:  req.SupportTickets,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestion": suggestion})
}

// Subscribe handles POST /subscriptions.
func (h *BillingHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tier, err := billing.ParseTier(req.Tier)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cadence, err := billing.ParseCadence(req.Cadence)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), billingApp.SubscribeCommand{
		UserID:        req.UserID,
		Tier:          tier,
		Cadence:       cadence,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// GetSubscription handles GET /subscriptions?userId=.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := optionalUUID(r, "userId")
	if err == nil && userID == uuid.Nil {
		err = sharedDomain.ErrInvalidInput.WithMessage("userId is required")
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// CancelSubscription handles POST /subscriptions/cancel.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.service.CancelSubscription(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// Refresh handles POST /credits/refresh.
func (h *BillingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balance, err := h.service.Ledger().Refresh(r.Context(), req.UserID, h.clock.Now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
