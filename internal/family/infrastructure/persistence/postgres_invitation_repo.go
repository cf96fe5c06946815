package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresInvitationRepository implements InvitationRepository with PostgreSQL.
type PostgresInvitationRepository struct {
	conn database.Connection
}

// NewPostgresInvitationRepository creates a new repository.
func NewPostgresInvitationRepository(conn database.Connection) *PostgresInvitationRepository {
	return &PostgresInvitationRepository{conn: conn}
}

// Create inserts a new invitation.
func (r *PostgresInvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO family_invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
		ON CONFLICT DO NOTHING`,
		inv.ID(), inv.PlanID(), inv.Email(), inv.InviterID(), inv.TokenHash(), string(inv.Status()),
		inv.ExpiresAt(), inv.AcceptedBy(), inv.AcceptedAt(), inv.CreatedAt(), inv.UpdatedAt(),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("create invitation %s: %w", inv.ID(), err))
	}
	return markPersisted(result, inv, "invitation")
}

// Update writes a status transition guarded on the stored row still being
// PENDING at the loaded version.
func (r *PostgresInvitationRepository) Update(ctx context.Context, inv *domain.Invitation) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE family_invitations
		SET status = $1, accepted_by = $2, accepted_at = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6 AND status = $7`,
		string(inv.Status()), inv.AcceptedBy(), inv.AcceptedAt(), inv.UpdatedAt(),
		inv.ID(), inv.Version(), string(domain.InvitationPending),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("update invitation %s: %w", inv.ID(), err))
	}
	return markPersisted(result, inv, "invitation")
}

// FindByID returns an invitation by id.
func (r *PostgresInvitationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE id = $1`, id)
	return scanOnePostgresInvitation(row)
}

// FindByTokenHash returns the invitation issued with the token whose digest
// is tokenHash.
func (r *PostgresInvitationRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE token_hash = $1`, tokenHash)
	return scanOnePostgresInvitation(row)
}

// ListByPlan returns every invitation of a plan, oldest first.
func (r *PostgresInvitationRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE family_plan_id = $1 ORDER BY created_at, id`,
		planID)
}

// ListByPlanAndEmail returns the invitations a plan sent to one address.
func (r *PostgresInvitationRepository) ListByPlanAndEmail(ctx context.Context, planID uuid.UUID, email string) ([]*domain.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE family_plan_id = $1 AND email = $2 ORDER BY created_at, id`,
		planID, email)
}

func (r *PostgresInvitationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invitation, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, database.StoreError(err)
	}
	defer rows.Close()

	var invitations []*domain.Invitation
	for rows.Next() {
		inv, err := scanPostgresInvitation(rows)
		if err != nil {
			return nil, database.StoreError(err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StoreError(err)
	}
	return invitations, nil
}

func scanOnePostgresInvitation(row database.Row) (*domain.Invitation, error) {
	inv, err := scanPostgresInvitation(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}
	return inv, nil
}

func scanPostgresInvitation(row database.Row) (*domain.Invitation, error) {
	var (
		id, planID, inviterID           uuid.UUID
		email, tokenHash, status        string
		expiresAt, createdAt, updatedAt time.Time
		acceptedBy                      *uuid.UUID
		acceptedAt                      *time.Time
		version                         int
	)
	err := row.Scan(
		&id, &planID, &email, &inviterID, &tokenHash, &status, &expiresAt,
		&acceptedBy, &acceptedAt, &version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateInvitation(
		id, planID, email, inviterID, tokenHash,
		domain.InvitationStatus(status), expiresAt.UTC(),
		acceptedBy, utcPtr(acceptedAt),
		createdAt.UTC(), updatedAt.UTC(), version,
	), nil
}

var _ domain.InvitationRepository = (*PostgresInvitationRepository)(nil)
