package queries

import (
	"context"
	"errors"
	"log/slog"
	"time"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// GetPlanQuery looks a plan up by id, or by one of its members.
type GetPlanQuery struct {
	UserID       uuid.UUID
	FamilyPlanID uuid.UUID
}

// PlanSummary is the plan record as shown to clients.
type PlanSummary struct {
	ID               uuid.UUID       `json:"id"`
	OwnerID          uuid.UUID       `json:"owner_id"`
	Tier             billing.Tier    `json:"tier"`
	Cadence          billing.Cadence `json:"cadence"`
	MaxMembers       int             `json:"max_members"`
	CurrentMembers   int             `json:"current_members"`
	SharedCreditPool int64           `json:"shared_credit_pool"`
	Status           string          `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	CanceledAt       *time.Time      `json:"canceled_at,omitempty"`
}

// MemberView is one subscriber on the plan.
type MemberView struct {
	UserID   uuid.UUID    `json:"user_id"`
	Tier     billing.Tier `json:"tier"`
	IsOwner  bool         `json:"is_owner"`
	JoinedAt time.Time    `json:"joined_at"`
}

// InvitationView is an invitation as shown to the owner. The token is never
// part of a view.
type InvitationView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanView is the read model returned for a plan.
type PlanView struct {
	Plan               PlanSummary      `json:"plan"`
	Owner              *MemberView      `json:"owner,omitempty"`
	Members            []MemberView     `json:"members"`
	PendingInvitations []InvitationView `json:"pending_invitations"`
}

// WithEffectiveStatus returns a copy whose pending invitations show their
// status as of now. Cached views are refreshed this way on every read.
func (v PlanView) WithEffectiveStatus(now time.Time) *PlanView {
	out := v
	out.PendingInvitations = make([]InvitationView, len(v.PendingInvitations))
	for i, inv := range v.PendingInvitations {
		if inv.Status == string(domain.InvitationPending) && now.After(inv.ExpiresAt) {
			inv.Status = string(domain.InvitationExpired)
		}
		out.PendingInvitations[i] = inv
	}
	return &out
}

// PlanViewCache caches plan views by plan id and plan version. A miss
// returns nil, nil. Set stores the view under view.Plan.Version, so a view
// built from an older plan row is never served once the plan has moved on.
type PlanViewCache interface {
	Get(ctx context.Context, planID uuid.UUID, version int) (*PlanView, error)
	Set(ctx context.Context, view *PlanView) error
	Invalidate(ctx context.Context, planID uuid.UUID) error
}

// GetPlanHandler handles the GetPlanQuery.
type GetPlanHandler struct {
	plans         domain.PlanRepository
	invitations   domain.InvitationRepository
	subscriptions billing.SubscriptionRepository
	cache         PlanViewCache
	clock         sharedDomain.Clock
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewGetPlanHandler creates a new GetPlanHandler. cache may be nil.
func NewGetPlanHandler(
	plans domain.PlanRepository,
	invitations domain.InvitationRepository,
	subscriptions billing.SubscriptionRepository,
	cache PlanViewCache,
	clock sharedDomain.Clock,
	logger *slog.Logger,
	metrics observability.Metrics,
) *GetPlanHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &GetPlanHandler{
		plans:         plans,
		invitations:   invitations,
		subscriptions: subscriptions,
		cache:         cache,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Handle returns the plan view. Exactly one of UserID and FamilyPlanID must
// be set.
func (h *GetPlanHandler) Handle(ctx context.Context, query GetPlanQuery) (*PlanView, error) {
	return observability.Track(ctx, h.logger, h.metrics, "family.get_plan", func(ctx context.Context) (*PlanView, error) {
		return h.handle(ctx, query)
	})
}

func (h *GetPlanHandler) handle(ctx context.Context, query GetPlanQuery) (*PlanView, error) {
	if (query.UserID == uuid.Nil) == (query.FamilyPlanID == uuid.Nil) {
		return nil, sharedDomain.ErrInvalidInput.WithMessage("exactly one of user id and family plan id is required")
	}

	planID := query.FamilyPlanID
	if planID == uuid.Nil {
		id, err := h.planIDForUser(ctx, query.UserID)
		if err != nil {
			return nil, err
		}
		planID = id
	}

	plan, err := h.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	if view := h.cached(ctx, planID, plan.Version()); view != nil {
		return view.WithEffectiveStatus(now), nil
	}

	view, err := h.load(ctx, plan)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, view); err != nil {
			h.logger.WarnContext(ctx, "plan cache write failed", "plan_id", planID, "error", err)
		}
	}
	return view.WithEffectiveStatus(now), nil
}

func (h *GetPlanHandler) planIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	sub, err := h.subscriptions.FindByUserID(ctx, userID)
	switch {
	case err == nil && sub.FamilyPlanID != nil:
		return *sub.FamilyPlanID, nil
	case err != nil && !errors.Is(err, billing.ErrSubscriptionNotFound):
		return uuid.Nil, err
	}

	plan, err := h.plans.FindActiveByOwner(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return plan.ID(), nil
}

func (h *GetPlanHandler) cached(ctx context.Context, planID uuid.UUID, version int) *PlanView {
	if h.cache == nil {
		return nil
	}
	view, err := h.cache.Get(ctx, planID, version)
	if err != nil {
		h.logger.WarnContext(ctx, "plan cache read failed", "plan_id", planID, "error", err)
		return nil
	}
	if view == nil {
		h.metrics.Counter(observability.MetricCacheMisses, 1, observability.T("cache", "plan_view"))
		return nil
	}
	h.metrics.Counter(observability.MetricCacheHits, 1, observability.T("cache", "plan_view"))
	return view
}

// load builds the view of plan as read. Member join times come from the
// accepted invitation that brought each member in.
func (h *GetPlanHandler) load(ctx context.Context, plan *domain.Plan) (*PlanView, error) {
	planID := plan.ID()
	view := &PlanView{
		Plan: PlanSummary{
			ID:               plan.ID(),
			OwnerID:          plan.OwnerID(),
			Tier:             plan.Tier(),
			Cadence:          plan.Cadence(),
			MaxMembers:       plan.MaxMembers(),
			CurrentMembers:   plan.CurrentMembers(),
			SharedCreditPool: plan.SharedCreditPool(),
			Status:           string(plan.Status()),
			Version:          plan.Version(),
			CreatedAt:        plan.CreatedAt(),
			CanceledAt:       plan.CanceledAt(),
		},
		Members:            []MemberView{},
		PendingInvitations: []InvitationView{},
	}

	invitations, err := h.invitations.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	joined := make(map[uuid.UUID]time.Time)
	for _, inv := range invitations {
		switch {
		case inv.Status() == domain.InvitationPending:
			view.PendingInvitations = append(view.PendingInvitations, InvitationView{
				ID:        inv.ID(),
				Email:     inv.Email(),
				Status:    string(inv.Status()),
				ExpiresAt: inv.ExpiresAt(),
				CreatedAt: inv.CreatedAt(),
			})
		case inv.Status() == domain.InvitationAccepted && inv.AcceptedBy() != nil && inv.AcceptedAt() != nil:
			// A member who left and came back keeps the latest acceptance.
			if at, ok := joined[*inv.AcceptedBy()]; !ok || inv.AcceptedAt().After(at) {
				joined[*inv.AcceptedBy()] = *inv.AcceptedAt()
			}
		}
	}

	subs, err := h.subscriptions.FindByFamilyPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		member := MemberView{
			UserID:   sub.UserID,
			Tier:     sub.Tier,
			IsOwner:  plan.IsOwner(sub.UserID),
			JoinedAt: plan.CreatedAt(),
		}
		if at, ok := joined[sub.UserID]; ok && !member.IsOwner {
			member.JoinedAt = at
		}
		if member.IsOwner {
			owner := member
			view.Owner = &owner
			continue
		}
		view.Members = append(view.Members, member)
	}
	if view.Owner == nil {
		owner := MemberView{UserID: plan.OwnerID(), Tier: billing.TierFree, IsOwner: true, JoinedAt: plan.CreatedAt()}
		if sub, err := h.subscriptions.FindByUserID(ctx, plan.OwnerID()); err == nil {
			owner.Tier = sub.Tier
		}
		view.Owner = &owner
	}
	return view, nil
}
