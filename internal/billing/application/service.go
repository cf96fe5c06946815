package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/perks/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// ErrManagedByFamilyPlan rejects standalone tier changes for family members;
// their tier follows the plan.
var ErrManagedByFamilyPlan = sharedDomain.NewError(sharedDomain.KindConflict, "already_in_family_plan", "subscription tier is managed by a family plan")

// Service provides pricing, credits and upgrade advice.
type Service struct {
	catalog       *domain.Catalog
	calculator    *domain.Calculator
	advisor       *domain.Advisor
	ledger        *Ledger
	subscriptions domain.SubscriptionRepository
	uow           sharedApplication.UnitOfWork
	clock         sharedDomain.Clock
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewService creates a new billing service.
func NewService(
	catalog *domain.Catalog,
	subscriptions domain.SubscriptionRepository,
	uow sharedApplication.UnitOfWork,
	clock sharedDomain.Clock,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	calculator := domain.NewCalculator(catalog)
	return &Service{
		catalog:       catalog,
		calculator:    calculator,
		advisor:       domain.NewAdvisor(catalog, calculator),
		ledger:        NewLedger(subscriptions, catalog, uow, logger, metrics),
		subscriptions: subscriptions,
		uow:           uow,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Catalog returns the tier catalog the service prices against.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// Ledger returns the credits ledger.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// PriceService prices a single service for a tier.
func (s *Service) PriceService(ctx context.Context, originalPrice int64, tier domain.Tier, credits int64, useCredits bool) (domain.PricingResult, error) {
	result, err := s.calculator.PriceService(originalPrice, tier, credits, useCredits)
	s.recordPricing(ctx, "service", tier, result, err)
	return result, err
}

// PriceBundle prices several services booked together.
func (s *Service) PriceBundle(ctx context.Context, services []int64, tier domain.Tier, credits int64) (domain.PricingResult, error) {
	result, err := s.calculator.PriceBundle(services, tier, credits)
	s.recordPricing(ctx, "bundle", tier, result, err)
	return result, err
}

// Quote prices a service for a subscriber using their current tier and
// credit balance. Users without a subscription are priced as FREE. Quoting
// does not consume credits.
func (s *Service) Quote(ctx context.Context, userID uuid.UUID, originalPrice int64, useCredits bool) (domain.PricingResult, error) {
	tier := domain.TierFree
	var credits int64

	sub, err := s.subscriptions.FindByUserID(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
	case err != nil:
		return domain.PricingResult{}, err
	case sub.Status != domain.SubscriptionCanceled:
		tier = sub.Tier
		balance, err := s.ledger.Balance(ctx, userID, s.clock.Now())
		if err != nil {
			return domain.PricingResult{}, err
		}
		credits = balance.Remaining
	}

	return s.PriceService(ctx, originalPrice, tier, credits, useCredits)
}

// Advise returns an upgrade suggestion, or nil.
func (s *Service) Advise(ctx context.Context, usage domain.Usage) (*domain.Suggestion, error) {
	suggestion, err := s.advisor.Suggest(usage)
	if err != nil {
		return nil, err
	}
	if suggestion != nil {
		s.logger.DebugContext(ctx, "upgrade suggested",
			"from", suggestion.CurrentTier,
			"to", suggestion.SuggestedTier,
			"reason", suggestion.Reason,
		)
	}
	return suggestion, nil
}

// SubscribeCommand selects a standalone tier for a user.
type SubscribeCommand struct {
	UserID        uuid.UUID
	Tier          domain.Tier
	Cadence       domain.Cadence
	PaymentMethod string
}

// Subscribe creates the user's subscription on first selection or changes
// its tier. Every tier change starts a fresh credit cycle.
func (s *Service) Subscribe(ctx context.Context, cmd SubscribeCommand) (*domain.Subscription, error) {
	if !cmd.Tier.Valid() {
		return nil, domain.ErrInvalidTier.WithMessage("unknown tier %q", cmd.Tier)
	}
	if cmd.Cadence == "" {
		cmd.Cadence = domain.CadenceMonthly
	}

	var sub *domain.Subscription
	err := sharedApplication.WithConflictRetry(ctx, s.uow, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		now := s.clock.Now()

		var err error
		sub, err = s.subscriptions.FindByUserID(txCtx, cmd.UserID)
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			sub = domain.NewSubscription(cmd.UserID, now)
		} else if err != nil {
			return err
		}
		if sub.IsFamilyMember() {
			return ErrManagedByFamilyPlan
		}
		if cmd.Tier.IsPaid() && cmd.PaymentMethod == "" && sub.PaymentMethod == "" {
			return sharedDomain.ErrInvalidInput.WithMessage("payment method is required for %s", cmd.Tier)
		}

		sub.ChangeTier(cmd.Tier, cmd.Cadence, cmd.PaymentMethod, now)
		return s.subscriptions.Save(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription tier selected",
		observability.UserIDKey, cmd.UserID,
		"tier", cmd.Tier,
		"cadence", cmd.Cadence,
	)
	return sub, nil
}

// GetSubscription returns the user's subscription.
func (s *Service) GetSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.subscriptions.FindByUserID(ctx, userID)
}

// CancelSubscription soft-cancels a standalone subscription. Canceling twice
// is a no-op. Family members leave through their plan instead.
func (s *Service) CancelSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	var (
		sub      *domain.Subscription
		canceled bool
	)
	err := sharedApplication.WithConflictRetry(ctx, s.uow, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		var err error
		canceled = false
		sub, err = s.subscriptions.FindByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		if sub.IsFamilyMember() {
			return ErrManagedByFamilyPlan
		}
		if sub.Status == domain.SubscriptionCanceled {
			return nil
		}
		sub.Cancel(s.clock.Now())
		canceled = true
		return s.subscriptions.Save(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	if canceled {
		s.logger.InfoContext(ctx, "subscription canceled",
			observability.UserIDKey, userID,
			"tier", sub.Tier,
		)
	}
	return sub, nil
}

func (s *Service) recordPricing(ctx context.Context, kind string, tier domain.Tier, result domain.PricingResult, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		s.logger.InfoContext(ctx, "pricing request rejected", "kind", kind, "tier", tier, "error", err)
	}
	s.metrics.Counter(observability.MetricPricingRequests, 1,
		observability.T("kind", kind),
		observability.T("outcome", outcome),
	)
	if err == nil {
		s.metrics.Histogram(observability.MetricPricingSavings, float64(result.TotalSavings), observability.T("kind", kind))
	}
}
