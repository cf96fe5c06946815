package application

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/billing/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var march10 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type store struct {
	subscriptions *persistence.SQLiteSubscriptionRepository
	uow           *database.GenericUnitOfWork
}

func newStore(t *testing.T) store {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	conn := sqlite.NewConnectionFromDB(sqlDB)
	require.NoError(t, migrations.Run(context.Background(), conn))
	return store{
		subscriptions: persistence.NewSQLiteSubscriptionRepository(conn),
		uow:           database.NewUnitOfWork(conn),
	}
}

func (s store) seed(t *testing.T, tier domain.Tier, now time.Time) uuid.UUID {
	t.Helper()
	sub := domain.NewSubscription(uuid.New(), now)
	sub.ChangeTier(tier, domain.CadenceMonthly, "pm_test", now)
	require.NoError(t, s.subscriptions.Save(context.Background(), sub))
	return sub.UserID
}

func newTestLedger(s store, metrics observability.Metrics) *Ledger {
	return NewLedger(s.subscriptions, domain.DefaultCatalog(), s.uow, nil, metrics)
}

func TestLedger_ConsumePartialThenExhausted(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	metrics := observability.NewInMemoryMetrics()
	ledger := newTestLedger(s, metrics)
	userID := s.seed(t, domain.TierPlus, march10)

	res, err := ledger.Consume(ctx, userID, 4000, march10)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), res.Applied)
	assert.Equal(t, int64(6000), res.Balance.Remaining)

	res, err = ledger.Consume(ctx, userID, 8000, march10)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), res.Applied)
	assert.Equal(t, int64(2000), res.Shortfall)
	assert.Zero(t, res.Balance.Remaining)

	_, err = ledger.Consume(ctx, userID, 1, march10)
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Equal(t, sharedDomain.KindConflict, sharedDomain.KindOf(err))

	assert.Equal(t, int64(10000), metrics.GetCounter(observability.MetricCreditsConsumed))

	stored, err := s.subscriptions.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), stored.CreditsConsumed)
}

func TestLedger_ConsumeZeroIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierFree, march10)

	res, err := ledger.Consume(ctx, userID, 0, march10)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)

	stored, err := s.subscriptions.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestLedger_ConsumeRejectsNegativeAmount(t *testing.T) {
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierPro, march10)

	_, err := ledger.Consume(context.Background(), userID, -5, march10)
	require.ErrorIs(t, err, sharedDomain.ErrNegativeAmount)
	assert.Equal(t, sharedDomain.KindInvalidInput, sharedDomain.KindOf(err))
}

func TestLedger_ConsumeCanceledSubscription(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierPro, march10)

	sub, err := s.subscriptions.FindByUserID(ctx, userID)
	require.NoError(t, err)
	sub.Cancel(march10)
	require.NoError(t, s.subscriptions.Save(ctx, sub))

	_, err = ledger.Consume(ctx, userID, 100, march10)
	assert.ErrorIs(t, err, domain.ErrSubscriptionCanceled)
}

func TestLedger_UnknownUser(t *testing.T) {
	s := newStore(t)
	ledger := newTestLedger(s, nil)

	_, err := ledger.Balance(context.Background(), uuid.New(), march10)
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.Equal(t, sharedDomain.KindNotFound, sharedDomain.KindOf(err))
}

func TestLedger_BalancePersistsRollover(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierPro, march10)

	_, err := ledger.Consume(ctx, userID, 20000, march10)
	require.NoError(t, err)

	sameCycle, err := ledger.Balance(ctx, userID, march10.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sameCycle.Remaining)

	april := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	balance, err := ledger.Balance(ctx, userID, april)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), balance.Remaining)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), balance.CycleStart)

	stored, err := s.subscriptions.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, stored.CreditsConsumed)
	assert.Equal(t, balance.CycleStart, stored.CycleStart)
}

func TestLedger_Refresh(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierPlus, march10)

	_, err := ledger.Consume(ctx, userID, 7000, march10)
	require.NoError(t, err)

	balance, err := ledger.Refresh(ctx, userID, march10)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance.Remaining)
}

func TestLedger_ConcurrentConsumeNeverExceedsAllotment(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := newTestLedger(s, nil)
	userID := s.seed(t, domain.TierPlus, march10)

	const workers = 24
	var applied, exhausted atomic.Int64

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			res, err := ledger.Consume(ctx, userID, 700, march10)
			if errors.Is(err, domain.ErrInsufficientCredits) {
				exhausted.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			applied.Add(res.Applied)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(10000), applied.Load())
	assert.Positive(t, exhausted.Load())

	stored, err := s.subscriptions.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), stored.CreditsConsumed)
}
