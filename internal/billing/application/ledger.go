package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/perks/internal/shared/application"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// Ledger tracks monthly credit allotments. Rollover is lazy: the first read
// or write in a new cycle persists the reset.
type Ledger struct {
	subscriptions domain.SubscriptionRepository
	catalog       *domain.Catalog
	uow           sharedApplication.UnitOfWork
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewLedger creates a credits ledger.
func NewLedger(
	subscriptions domain.SubscriptionRepository,
	catalog *domain.Catalog,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Ledger{
		subscriptions: subscriptions,
		catalog:       catalog,
		uow:           uow,
		logger:        logger,
		metrics:       metrics,
	}
}

// Balance returns the user's credit balance at now, persisting a cycle
// rollover when one is due.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID, now time.Time) (domain.CreditsBalance, error) {
	var balance domain.CreditsBalance
	err := sharedApplication.WithConflictRetry(ctx, l.uow, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		sub, err := l.subscriptions.FindByUserID(txCtx, userID)
		if err != nil {
			return err
		}

		benefits := l.catalog.Benefits(sub.Tier)
		if sub.RollCycle(now) {
			if err := l.subscriptions.Save(txCtx, sub); err != nil {
				return err
			}
			l.logger.DebugContext(ctx, "credit cycle rolled over",
				observability.UserIDKey, userID,
				"cycle_start", sub.CycleStart,
			)
		}
		balance, _ = domain.Balance(sub, benefits, now)
		return nil
	})
	return balance, err
}

// Consume applies up to amount of the user's remaining credits. The read and
// the guarded write happen in one unit, so concurrent consumers can never
// push consumption past the allotment.
func (l *Ledger) Consume(ctx context.Context, userID uuid.UUID, amount int64, now time.Time) (domain.ConsumeResult, error) {
	ctx = observability.WithOperation(ctx, "billing.consume_credits")
	var result domain.ConsumeResult
	err := sharedApplication.WithConflictRetry(ctx, l.uow, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		sub, err := l.subscriptions.FindByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		if sub.Status == domain.SubscriptionCanceled {
			return domain.ErrSubscriptionCanceled
		}

		consumed, cycleStart := sub.CreditsConsumed, sub.CycleStart
		result, err = sub.ConsumeCredits(l.catalog.Benefits(sub.Tier), amount, now)
		if err != nil {
			return err
		}
		if sub.CreditsConsumed == consumed && sub.CycleStart.Equal(cycleStart) {
			return nil
		}
		return l.subscriptions.Save(txCtx, sub)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			l.logger.InfoContext(ctx, "credits exhausted", observability.UserIDKey, userID, "requested", amount)
		}
		return domain.ConsumeResult{}, err
	}

	l.metrics.Counter(observability.MetricCreditsConsumed, result.Applied)
	return result, nil
}

// Refresh restarts the user's credit cycle with the full allotment of their
// tier. Support uses it to restore credits after a failed booking.
func (l *Ledger) Refresh(ctx context.Context, userID uuid.UUID, now time.Time) (domain.CreditsBalance, error) {
	var balance domain.CreditsBalance
	err := sharedApplication.WithConflictRetry(ctx, l.uow, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		sub, err := l.subscriptions.FindByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		sub.ResetCredits(now)
		if err := l.subscriptions.Save(txCtx, sub); err != nil {
			return err
		}
		balance, _ = domain.Balance(sub, l.catalog.Benefits(sub.Tier), now)
		return nil
	})
	return balance, err
}
