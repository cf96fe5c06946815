package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const subscriptionColumns = `user_id, tier, family_plan_id, cadence, payment_method, status,
	credits_consumed, cycle_start, version, created_at, updated_at`

// SQLiteSubscriptionRepository implements SubscriptionRepository with SQLite.
type SQLiteSubscriptionRepository struct {
	conn database.Connection
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(conn database.Connection) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{conn: conn}
}

// Save inserts a new subscription or updates one guarded on its version.
func (r *SQLiteSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	exec := database.ExecutorFromContext(ctx, r.conn)

	familyPlanID := sql.NullString{}
	if sub.FamilyPlanID != nil {
		familyPlanID = sql.NullString{String: sub.FamilyPlanID.String(), Valid: true}
	}

	var (
		result database.Result
		err    error
	)
	if sub.Version == 0 {
		result, err = exec.Exec(ctx, `
			INSERT INTO subscriptions (`+subscriptionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (user_id) DO NOTHING`,
			sub.UserID.String(),
			string(sub.Tier),
			familyPlanID,
			string(sub.Cadence),
			sub.PaymentMethod,
			string(sub.Status),
			sub.CreditsConsumed,
			sqlite.FormatTime(sub.CycleStart),
			sqlite.FormatTime(sub.CreatedAt),
			sqlite.FormatTime(sub.UpdatedAt),
		)
	} else {
		result, err = exec.Exec(ctx, `
			UPDATE subscriptions
			SET tier = ?, family_plan_id = ?, cadence = ?, payment_method = ?, status = ?,
				credits_consumed = ?, cycle_start = ?, version = version + 1, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			string(sub.Tier),
			familyPlanID,
			string(sub.Cadence),
			sub.PaymentMethod,
			string(sub.Status),
			sub.CreditsConsumed,
			sqlite.FormatTime(sub.CycleStart),
			sqlite.FormatTime(sub.UpdatedAt),
			sub.UserID.String(),
			sub.Version,
		)
	}
	if err != nil {
		return database.StoreError(fmt.Errorf("save subscription %s: %w", sub.UserID, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return database.StoreError(err)
	}
	if affected == 0 {
		return sharedDomain.ErrConcurrentUpdate.WithMessage("subscription %s was modified concurrently", sub.UserID)
	}
	sub.Version++
	return nil
}

// FindByUserID returns the subscription for a user.
func (r *SQLiteSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ?`, userID.String())

	sub, err := scanSQLiteSubscription(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}
	return sub, nil
}

// FindByFamilyPlanID lists the subscriptions linked to a plan, owner included.
func (r *SQLiteSubscriptionRepository) FindByFamilyPlanID(ctx context.Context, planID uuid.UUID) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE family_plan_id = ? ORDER BY created_at, user_id`,
		planID.String())
	if err != nil {
		return nil, database.StoreError(err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StoreError(err)
	}
	return subs, nil
}

func scanSQLiteSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		sub                              domain.Subscription
		userID, tier, cadence, status    string
		familyPlanID                     sql.NullString
		cycleStart, createdAt, updatedAt string
	)
	err := row.Scan(
		&userID, &tier, &familyPlanID, &cadence, &sub.PaymentMethod, &status,
		&sub.CreditsConsumed, &cycleStart, &sub.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sub.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid subscription user_id: %w", err)
	}
	if familyPlanID.Valid {
		id, err := uuid.Parse(familyPlanID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription family_plan_id: %w", err)
		}
		sub.FamilyPlanID = &id
	}
	if sub.CycleStart, err = sqlite.ParseTime(cycleStart); err != nil {
		return nil, err
	}
	if sub.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = sqlite.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	sub.Tier = domain.Tier(tier)
	sub.Cadence = domain.Cadence(cadence)
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
