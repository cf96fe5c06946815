package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupSQLiteDB(t *testing.T) database.Connection {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	conn := sqlite.NewConnectionFromDB(sqlDB)
	require.NoError(t, migrations.Run(context.Background(), conn))
	return conn
}

func TestSQLiteSubscriptionRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSubscriptionRepository(setupSQLiteDB(t))
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	sub := domain.NewSubscription(uuid.New(), now)
	sub.ChangeTier(domain.TierPlus, domain.CadenceYearly, "pm_visa", now)
	sub.CreditsConsumed = 1200

	require.NoError(t, repo.Save(ctx, sub))
	assert.Equal(t, 1, sub.Version)

	found, err := repo.FindByUserID(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, sub, found)
}

func TestSQLiteSubscriptionRepository_NotFound(t *testing.T) {
	repo := NewSQLiteSubscriptionRepository(setupSQLiteDB(t))

	_, err := repo.FindByUserID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestSQLiteSubscriptionRepository_GuardedUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSubscriptionRepository(setupSQLiteDB(t))
	now := time.Now().UTC()

	sub := domain.NewSubscription(uuid.New(), now)
	require.NoError(t, repo.Save(ctx, sub))

	first, err := repo.FindByUserID(ctx, sub.UserID)
	require.NoError(t, err)
	stale, err := repo.FindByUserID(ctx, sub.UserID)
	require.NoError(t, err)

	first.ChangeTier(domain.TierPro, domain.CadenceMonthly, "pm_amex", now)
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	stale.CreditsConsumed = 10
	err = repo.Save(ctx, stale)
	require.ErrorIs(t, err, sharedDomain.ErrConcurrentUpdate)
	assert.Equal(t, 1, stale.Version, "a failed save must not bump the version")

	current, err := repo.FindByUserID(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, current.Tier)
	assert.Zero(t, current.CreditsConsumed)
}

func TestSQLiteSubscriptionRepository_DuplicateInsertConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSubscriptionRepository(setupSQLiteDB(t))
	userID := uuid.New()

	require.NoError(t, repo.Save(ctx, domain.NewSubscription(userID, time.Now())))
	err := repo.Save(ctx, domain.NewSubscription(userID, time.Now()))
	assert.ErrorIs(t, err, sharedDomain.ErrConcurrentUpdate)
}

func TestSQLiteSubscriptionRepository_FindByFamilyPlanID(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSubscriptionRepository(setupSQLiteDB(t))
	now := time.Now().UTC()
	planID := uuid.New()

	for i := 0; i < 3; i++ {
		sub := domain.NewSubscription(uuid.New(), now.Add(time.Duration(i)*time.Second))
		if i < 2 {
			sub.JoinFamily(planID, domain.TierPro, domain.CadenceMonthly, now)
		}
		require.NoError(t, repo.Save(ctx, sub))
	}

	members, err := repo.FindByFamilyPlanID(ctx, planID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.True(t, m.InFamily(planID))
		assert.Equal(t, domain.TierPro, m.Tier)
	}

	none, err := repo.FindByFamilyPlanID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
