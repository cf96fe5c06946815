package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/perks/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresSubscriptionRepository implements SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	conn database.Connection
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(conn database.Connection) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{conn: conn}
}

// Save inserts a new subscription or updates one guarded on its version.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	exec := database.ExecutorFromContext(ctx, r.conn)

	var (
		result database.Result
		err    error
	)
	if sub.Version == 0 {
		result, err = exec.Exec(ctx, `
			INSERT INTO subscriptions (`+subscriptionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
			ON CONFLICT (user_id) DO NOTHING`,
			sub.UserID, string(sub.Tier), sub.FamilyPlanID, string(sub.Cadence), sub.PaymentMethod,
			string(sub.Status), sub.CreditsConsumed, sub.CycleStart, sub.CreatedAt, sub.UpdatedAt,
		)
	} else {
		result, err = exec.Exec(ctx, `
			UPDATE subscriptions
			SET tier = $2, family_plan_id = $3, cadence = $4, payment_method = $5, status = $6,
				credits_consumed = $7, cycle_start = $8, version = version + 1, updated_at = $9
			WHERE user_id = $1 AND version = $10`,
			sub.UserID, string(sub.Tier), sub.FamilyPlanID, string(sub.Cadence), sub.PaymentMethod,
			string(sub.Status), sub.CreditsConsumed, sub.CycleStart, sub.UpdatedAt, sub.Version,
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
func (r *PostgresSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)

	sub, err := scanPostgresSubscription(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}
	return sub, nil
}

// FindByFamilyPlanID lists the subscriptions linked to a plan, owner included.
func (r *PostgresSubscriptionRepository) FindByFamilyPlanID(ctx context.Context, planID uuid.UUID) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE family_plan_id = $1 ORDER BY created_at, user_id`,
		planID)
	if err != nil {
		return nil, database.StoreError(err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
		if err != nil {
			return nil, database.StoreError(err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StoreError(err)
	}
	return subs, nil
}

func scanPostgresSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		sub                   domain.Subscription
		tier, cadence, status string
	)
	err := row.Scan(
		&sub.UserID, &tier, &sub.FamilyPlanID, &cadence, &sub.PaymentMethod, &status,
		&sub.CreditsConsumed, &sub.CycleStart, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Tier = domain.Tier(tier)
	sub.Cadence = domain.Cadence(cadence)
	sub.Status = domain.SubscriptionStatus(status)
	sub.CycleStart = sub.CycleStart.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
