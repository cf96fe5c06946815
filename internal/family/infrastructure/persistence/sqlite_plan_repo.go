package persistence

import (
	"context"
	"database/sql"
	"fmt"

	billing "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const planColumns = `id, owner_id, tier, cadence, max_members, current_members, shared_credit_pool,
	status, version, created_at, updated_at, canceled_at`

// SQLitePlanRepository implements PlanRepository with SQLite.
type SQLitePlanRepository struct {
	conn database.Connection
}

// NewSQLitePlanRepository creates a new repository.
func NewSQLitePlanRepository(conn database.Connection) *SQLitePlanRepository {
	return &SQLitePlanRepository{conn: conn}
}

// Create inserts a new plan. A second active plan for the same owner loses
// against the unique owner index and reports a conflict.
func (r *SQLitePlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO family_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		plan.ID().String(),
		plan.OwnerID().String(),
		string(plan.Tier()),
		string(plan.Cadence()),
		plan.MaxMembers(),
		plan.CurrentMembers(),
		plan.SharedCreditPool(),
		string(plan.Status()),
		sqlite.FormatTime(plan.CreatedAt()),
		sqlite.FormatTime(plan.UpdatedAt()),
		sqlite.FormatNullTime(plan.CanceledAt()),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("create family plan %s: %w", plan.ID(), err))
	}
	return markPersisted(result, plan, "family plan")
}

// Update writes the plan guarded on its version and on the member count
// fitting the seat limit.
func (r *SQLitePlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE family_plans
		SET current_members = ?, shared_credit_pool = ?, status = ?, canceled_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND ? <= max_members`,
		plan.CurrentMembers(),
		plan.SharedCreditPool(),
		string(plan.Status()),
		sqlite.FormatNullTime(plan.CanceledAt()),
		sqlite.FormatTime(plan.UpdatedAt()),
		plan.ID().String(),
		plan.Version(),
		plan.CurrentMembers(),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("update family plan %s: %w", plan.ID(), err))
	}
	return markPersisted(result, plan, "family plan")
}

// FindByID returns a plan in any status.
func (r *SQLitePlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+planColumns+` FROM family_plans WHERE id = ?`, id.String())
	return r.scanOne(row)
}

// FindActiveByOwner returns the owner's active plan.
func (r *SQLitePlanRepository) FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+planColumns+` FROM family_plans WHERE owner_id = ? AND status = ?`,
		ownerID.String(), string(domain.PlanActive))
	return r.scanOne(row)
}

func (r *SQLitePlanRepository) scanOne(row database.Row) (*domain.Plan, error) {
	plan, err := scanSQLitePlan(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}
	return plan, nil
}

func scanSQLitePlan(row database.Row) (*domain.Plan, error) {
	var (
		id, ownerID, tier, cadence, status  string
		maxMembers, currentMembers, version int
		pool                                int64
		createdAt, updatedAt                string
		canceledAt                          sql.NullString
	)
	err := row.Scan(
		&id, &ownerID, &tier, &cadence, &maxMembers, &currentMembers, &pool,
		&status, &version, &createdAt, &updatedAt, &canceledAt,
	)
	if err != nil {
		return nil, err
	}

	planID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid family plan id: %w", err)
	}
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid family plan owner_id: %w", err)
	}
	created, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := sqlite.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	canceled, err := sqlite.ParseNullTime(canceledAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydratePlan(
		planID, owner,
		billing.Tier(tier), billing.Cadence(cadence),
		maxMembers, currentMembers, pool,
		domain.PlanStatus(status), canceled,
		created, updated, version,
	), nil
}

type persistable interface {
	ID() uuid.UUID
	MarkPersisted()
}

// markPersisted turns a guarded write that matched no row into a conflict
// and advances the aggregate version otherwise.
func markPersisted(result database.Result, agg persistable, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return database.StoreError(err)
	}
	if affected == 0 {
		return sharedDomain.ErrConcurrentUpdate.WithMessage("%s %s was modified concurrently", what, agg.ID())
	}
	agg.MarkPersisted()
	return nil
}

var _ domain.PlanRepository = (*SQLitePlanRepository)(nil)
