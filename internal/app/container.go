// Package app wires the perks services together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	billingApp "github.com/felixgeelhaar/perks/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/application/commands"
	"github.com/felixgeelhaar/perks/internal/family/application/queries"
	familyDomain "github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/family/infrastructure/cache"
	"github.com/felixgeelhaar/perks/internal/family/infrastructure/consumers"
	"github.com/felixgeelhaar/perks/internal/family/infrastructure/notify"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/perks/pkg/config"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// NotificationExchange is the topic exchange notifications are published to
// when a broker is configured.
const NotificationExchange = "perks.notifications"

// FamilyHandlers groups the family plan command and query handlers.
type FamilyHandlers struct {
	CreatePlan       *commands.CreatePlanHandler
	Invite           *commands.InviteHandler
	AcceptInvitation *commands.AcceptInvitationHandler
	RemoveMember     *commands.RemoveMemberHandler
	CancelPlan       *commands.CancelPlanHandler
	RevokeInvitation *commands.RevokeInvitationHandler
	GetPlan          *queries.GetPlanHandler
}

// Container holds the application's dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry
	Clock   sharedDomain.Clock

	DBConn     database.Connection
	UnitOfWork *database.GenericUnitOfWork

	SubscriptionRepo billingDomain.SubscriptionRepository
	PlanRepo         familyDomain.PlanRepository
	InvitationRepo   familyDomain.InvitationRepository
	OutboxRepo       outbox.Repository
	PlanCache        queries.PlanViewCache
	Notifier         familyDomain.Notifier

	Billing *billingApp.Service
	Family  FamilyHandlers

	closers []func() error
}

// NewContainer connects to the configured store, runs migrations and builds
// every handler. Redis and RabbitMQ are optional; without them the plan cache
// is a no-op and notifications are only logged.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(prometheus.NewRegistry()),
		Health:  observability.NewHealthRegistry(),
		Clock:   sharedDomain.SystemClock{},
	}

	if err := c.initStore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRepositories(); err != nil {
		c.Close()
		return nil, err
	}
	c.initCache(ctx)
	c.initNotifier()
	c.initHandlers()
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	dbCfg := database.Config{
		Driver:     database.Driver(c.Config.DatabaseDriver),
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
		MaxConns:   c.Config.DatabaseMaxConns,
	}
	if c.Config.UseSQLite() {
		dbCfg.Driver = database.DriverSQLite
		if dbCfg.SQLitePath == "" {
			dbCfg.SQLitePath = database.DefaultSQLitePath()
		}
		if err := database.EnsureDirectory(dbCfg.SQLitePath); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.closers = append(c.closers, conn.Close)
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.Health.Register("database", observability.PingChecker("database", true, conn.Ping))

	if err := migrations.Run(ctx, conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	c.Logger.Info("database ready", "driver", conn.Driver())
	return nil
}

func (c *Container) initRepositories() error {
	repos, err := NewRepositories(c.DBConn)
	if err != nil {
		return err
	}
	c.SubscriptionRepo = repos.Subscriptions
	c.PlanRepo = repos.Plans
	c.InvitationRepo = repos.Invitations
	c.OutboxRepo = repos.Outbox
	return nil
}

func (c *Container) initCache(ctx context.Context) {
	c.PlanCache = cache.NoopPlanViewCache{}
	if c.Config.RedisURL == "" {
		return
	}

	client, err := cache.Dial(ctx, c.Config.RedisURL)
	if err != nil {
		c.Logger.Warn("redis not available, plan cache disabled", "error", err)
		return
	}
	redisCache := cache.NewRedisPlanViewCache(client, c.Config.PlanCacheTTL)
	c.PlanCache = redisCache
	c.closers = append(c.closers, redisCache.Close)
	c.Health.Register("redis", observability.PingChecker("redis", false, redisCache.Ping))
}

func (c *Container) initNotifier() {
	c.Notifier = notify.NewLogNotifier(c.Logger)
	if c.Config.RabbitMQURL == "" {
		return
	}

	publisher, err := eventbus.NewRabbitMQPublisher(eventbus.RabbitMQConfig{
		URL:      c.Config.RabbitMQURL,
		Exchange: NotificationExchange,
	}, c.Logger)
	if err != nil {
		c.Logger.Warn("RabbitMQ not available, notifications are only logged", "error", err)
		return
	}
	c.closers = append(c.closers, publisher.Close)
	c.Notifier = notify.NewBreakerNotifier(
		notify.NewPublisherNotifier(publisher),
		notify.BreakerConfig{
			MaxFailures: c.Config.NotifierBreakerMaxFailures,
			Timeout:     c.Config.NotifierBreakerTimeout,
		},
		c.Logger,
		c.Metrics,
	)
}

func (c *Container) initHandlers() {
	catalog := billingDomain.DefaultCatalog()

	c.Billing = billingApp.NewService(catalog, c.SubscriptionRepo, c.UnitOfWork, c.Clock, c.Logger, c.Metrics)

	deps := commands.Dependencies{
		Plans:         c.PlanRepo,
		Invitations:   c.InvitationRepo,
		Subscriptions: c.SubscriptionRepo,
		Outbox:        c.OutboxRepo,
		UnitOfWork:    c.UnitOfWork,
		Catalog:       catalog,
		Notifier:      c.Notifier,
		Cache:         c.PlanCache,
		Clock:         c.Clock,
		Logger:        c.Logger,
		Metrics:       c.Metrics,
		InvitationTTL: c.Config.InvitationTTL,
	}
	c.Family = FamilyHandlers{
		CreatePlan:       commands.NewCreatePlanHandler(deps),
		Invite:           commands.NewInviteHandler(deps),
		AcceptInvitation: commands.NewAcceptInvitationHandler(deps),
		RemoveMember:     commands.NewRemoveMemberHandler(deps),
		CancelPlan:       commands.NewCancelPlanHandler(deps),
		RevokeInvitation: commands.NewRevokeInvitationHandler(deps),
		GetPlan: queries.NewGetPlanHandler(
			c.PlanRepo, c.InvitationRepo, c.SubscriptionRepo, c.PlanCache, c.Clock, c.Logger, c.Metrics,
		),
	}
}

// EventPublisher returns where the outbox processor publishes: RabbitMQ when
// configured, followed by the in-process bus that keeps the plan cache in
// step with events from every writer.
func (c *Container) EventPublisher() (eventbus.Publisher, error) {
	local := eventbus.NewInProcessEventBus(c.Logger).WithMetrics(c.Metrics)
	local.RegisterConsumer(consumers.NewCacheInvalidator(c.PlanCache, c.Logger))

	if c.Config.RabbitMQURL == "" {
		return local, nil
	}

	rabbit, err := eventbus.NewRabbitMQPublisher(eventbus.RabbitMQConfig{URL: c.Config.RabbitMQURL}, c.Logger)
	if err != nil {
		return nil, err
	}
	c.Health.Register("rabbitmq", observability.PingChecker("rabbitmq", false, func(context.Context) error {
		if rabbit.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}))
	return eventbus.NewFanout(rabbit, local), nil
}

// OutboxProcessor creates the processor that drains the outbox into publisher.
func (c *Container) OutboxProcessor(publisher eventbus.Publisher) *outbox.Processor {
	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = c.Config.OutboxPollInterval
	cfg.BatchSize = c.Config.OutboxBatchSize
	cfg.MaxRetries = c.Config.OutboxMaxRetries
	cfg.CleanupInterval = c.Config.OutboxCleanupInterval
	cfg.RetentionDays = c.Config.OutboxRetentionDays
	return outbox.NewProcessor(c.OutboxRepo, publisher, cfg, c.Logger).WithMetrics(c.Metrics)
}

// Close releases every connection in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
