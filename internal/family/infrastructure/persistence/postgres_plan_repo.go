package persistence

import (
	"context"
	"fmt"
	"time"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresPlanRepository implements PlanRepository with PostgreSQL.
type PostgresPlanRepository struct {
	conn database.Connection
}

// NewPostgresPlanRepository creates a new repository.
func NewPostgresPlanRepository(conn database.Connection) *PostgresPlanRepository {
	return &PostgresPlanRepository{conn: conn}
}

// Create inserts a new plan. A second active plan for the same owner loses
// against the unique owner index and reports a conflict.
func (r *PostgresPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO family_plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10, $11)
		ON CONFLICT DO NOTHING`,
		plan.ID(), plan.OwnerID(), string(plan.Tier()), string(plan.Cadence()),
		plan.MaxMembers(), plan.CurrentMembers(), plan.SharedCreditPool(), string(plan.Status()),
		plan.CreatedAt(), plan.UpdatedAt(), plan.CanceledAt(),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("create family plan %s: %w", plan.ID(), err))
	}
	return markPersisted(result, plan, "family plan")
}

// Update writes the plan guarded on its version and on the member count
// fitting the seat limit.
func (r *PostgresPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE family_plans
		SET current_members = $1, shared_credit_pool = $2, status = $3, canceled_at = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7 AND $1 <= max_members`,
		plan.CurrentMembers(), plan.SharedCreditPool(), string(plan.Status()), plan.CanceledAt(),
		plan.UpdatedAt(), plan.ID(), plan.Version(),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("update family plan %s: %w", plan.ID(), err))
	}
	return markPersisted(result, plan, "family plan")
}

// FindByID returns a plan in any status.
func (r *PostgresPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+planColumns+` FROM family_plans WHERE id = $1`, id)
	return scanOnePostgresPlan(row)
}

// FindActiveByOwner returns the owner's active plan.
func (r *PostgresPlanRepository) FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+planColumns+` FROM family_plans WHERE owner_id = $1 AND status = $2`,
		ownerID, string(domain.PlanActive))
	return scanOnePostgresPlan(row)
}

func scanOnePostgresPlan(row database.Row) (*domain.Plan, error) {
	var (
		id, ownerID                         uuid.UUID
		tier, cadence, status               string
		maxMembers, currentMembers, version int
		pool                                int64
		createdAt, updatedAt                time.Time
		canceledAt                          *time.Time
	)
	err := row.Scan(
		&id, &ownerID, &tier, &cadence, &maxMembers, &currentMembers, &pool,
		&status, &version, &createdAt, &updatedAt, &canceledAt,
	)
	if database.IsNoRows(err) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}

	return domain.RehydratePlan(
		id, ownerID,
		billing.Tier(tier), billing.Cadence(cadence),
		maxMembers, currentMembers, pool,
		domain.PlanStatus(status), utcPtr(canceledAt),
		createdAt.UTC(), updatedAt.UTC(), version,
	), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ domain.PlanRepository = (*PostgresPlanRepository)(nil)
