package commands

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/perks/internal/billing/infrastructure/persistence"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/family/infrastructure/persistence"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Invalidate(ctx context.Context, planID uuid.UUID) error {
	return m.Called(ctx, planID).Error(0)
}

type fixture struct {
	plans         *persistence.SQLitePlanRepository
	invitations   *persistence.SQLiteInvitationRepository
	subscriptions *billingPersistence.SQLiteSubscriptionRepository
	outbox        *outbox.SQLiteRepository
	clock         *testClock
	metrics       *observability.InMemoryMetrics
	notifier      *mockNotifier
	deps          Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	conn := sqlite.NewConnectionFromDB(sqlDB)
	require.NoError(t, migrations.Run(context.Background(), conn))

	f := &fixture{
		plans:         persistence.NewSQLitePlanRepository(conn),
		invitations:   persistence.NewSQLiteInvitationRepository(conn),
		subscriptions: billingPersistence.NewSQLiteSubscriptionRepository(conn),
		outbox:        outbox.NewSQLiteRepository(conn),
		clock:         &testClock{at: start},
		metrics:       observability.NewInMemoryMetrics(),
		notifier:      &mockNotifier{},
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.deps = Dependencies{
		Plans:         f.plans,
		Invitations:   f.invitations,
		Subscriptions: f.subscriptions,
		Outbox:        f.outbox,
		UnitOfWork:    database.NewUnitOfWork(conn),
		Catalog:       billing.DefaultCatalog(),
		Notifier:      f.notifier,
		Clock:         f.clock,
		Metrics:       f.metrics,
	}
	return f
}

func (f *fixture) createPlan(t *testing.T, tier billing.Tier) (ownerID, planID uuid.UUID) {
	t.Helper()
	ownerID = uuid.New()
	res, err := NewCreatePlanHandler(f.deps).Handle(context.Background(), CreatePlanCommand{
		OwnerID:       ownerID,
		Tier:          tier,
		Cadence:       billing.CadenceMonthly,
		PaymentMethod: "pm_card",
	})
	require.NoError(t, err)
	return ownerID, res.PlanID
}

func (f *fixture) invite(t *testing.T, planID, ownerID uuid.UUID, email string) *InviteResult {
	t.Helper()
	res, err := NewInviteHandler(f.deps).Handle(context.Background(), InviteCommand{
		FamilyPlanID: planID,
		Email:        email,
		InviterID:    ownerID,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) join(t *testing.T, planID, ownerID uuid.UUID, email string) uuid.UUID {
	t.Helper()
	inv := f.invite(t, planID, ownerID, email)
	userID := uuid.New()
	_, err := NewAcceptInvitationHandler(f.deps).Handle(context.Background(), AcceptInvitationCommand{
		Token:  inv.Token,
		UserID: userID,
	})
	require.NoError(t, err)
	return userID
}

func (f *fixture) routingKeys(t *testing.T) []string {
	t.Helper()
	msgs, err := f.outbox.GetUnpublished(context.Background(), 100)
	require.NoError(t, err)
	keys := make([]string, 0, len(msgs))
	for _, m := range msgs {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}
