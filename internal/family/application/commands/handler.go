package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedApplication "github.com/felixgeelhaar/perks/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

// PlanCache is the part of the plan-view cache that writers need.
type PlanCache interface {
	Invalidate(ctx context.Context, planID uuid.UUID) error
}

// Dependencies bundles what the family command handlers share.
type Dependencies struct {
	Plans         domain.PlanRepository
	Invitations   domain.InvitationRepository
	Subscriptions billing.SubscriptionRepository
	Outbox        outbox.Writer
	UnitOfWork    sharedApplication.UnitOfWork
	Catalog       *billing.Catalog

	// Optional.
	Notifier      domain.Notifier
	Cache         PlanCache
	Clock         sharedDomain.Clock
	Logger        *slog.Logger
	Metrics       observability.Metrics
	InvitationTTL time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = sharedDomain.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NoopMetrics{}
	}
	if d.InvitationTTL <= 0 {
		d.InvitationTTL = domain.DefaultInvitationTTL
	}
	if d.Catalog == nil {
		d.Catalog = billing.DefaultCatalog()
	}
	return d
}

type eventSource interface {
	DomainEvents() []sharedDomain.DomainEvent
	ClearDomainEvents()
}

// transact runs fn as one unit of work, re-running it after lost optimistic
// races, and records the outcome.
func (d Dependencies) transact(ctx context.Context, command string, fn sharedApplication.UnitOfWorkFunc) error {
	ctx = observability.WithOperation(ctx, "family."+command)
	attempt := 0
	err := sharedApplication.WithConflictRetry(ctx, d.UnitOfWork, sharedApplication.DefaultConflictAttempts, func(txCtx context.Context) error {
		attempt++
		if attempt > 1 {
			d.Metrics.Counter(observability.MetricConflictRetries, 1, observability.T("command", command))
		}
		return fn(txCtx)
	})

	outcome := "ok"
	if err != nil {
		kind := sharedDomain.KindOf(err)
		outcome = string(kind)
		switch kind {
		case sharedDomain.KindInvalidInput, sharedDomain.KindNotFound, sharedDomain.KindConflict, sharedDomain.KindNotAuthorized:
			d.Logger.InfoContext(ctx, "family command rejected", "error", err)
		default:
			if outcome == "" {
				outcome = "error"
			}
			d.Logger.ErrorContext(ctx, "family command failed", "attempts", attempt, "error", err)
		}
	}
	d.Metrics.Counter(observability.MetricFamilyCommands, 1,
		observability.T("command", command),
		observability.T("outcome", outcome),
	)
	return err
}

// storeEvents moves the pending events of sources into the outbox inside the
// current unit of work.
func (d Dependencies) storeEvents(ctx context.Context, actorID uuid.UUID, sources ...eventSource) error {
	var events []sharedDomain.DomainEvent
	for _, s := range sources {
		events = append(events, s.DomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, actorID))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := d.Outbox.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	for _, s := range sources {
		s.ClearDomainEvents()
	}
	return nil
}

// afterCommit drops the cached view of the plan and delivers notifications.
// Neither may fail the already committed command.
func (d Dependencies) afterCommit(ctx context.Context, planID uuid.UUID, notifications ...domain.Notification) {
	if d.Cache != nil {
		if err := d.Cache.Invalidate(ctx, planID); err != nil {
			d.Logger.WarnContext(ctx, "plan cache invalidation failed", "plan_id", planID, "error", err)
		}
	}
	if d.Notifier == nil {
		return
	}
	for _, n := range notifications {
		if err := d.Notifier.Notify(ctx, n); err != nil {
			d.Metrics.Counter(observability.MetricNotificationsFailed, 1, observability.T("type", string(n.Type)))
			d.Logger.WarnContext(ctx, "notification not delivered",
				"type", n.Type,
				"plan_id", planID,
				"error", err,
			)
			continue
		}
		d.Metrics.Counter(observability.MetricNotificationsSent, 1, observability.T("type", string(n.Type)))
	}
}

// findOrNewSubscription loads the user's subscription or starts a FREE one.
func (d Dependencies) findOrNewSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*billing.Subscription, error) {
	sub, err := d.Subscriptions.FindByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		return billing.NewSubscription(userID, now), nil
	}
	return nil, err
}

func isNotFound(err error) bool {
	return sharedDomain.KindOf(err) == sharedDomain.KindNotFound
}
