package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const invitationColumns = `id, family_plan_id, email, inviter_id, token_hash, status, expires_at,
	accepted_by, accepted_at, version, created_at, updated_at`

// SQLiteInvitationRepository implements InvitationRepository with SQLite.
type SQLiteInvitationRepository struct {
	conn database.Connection
}

// NewSQLiteInvitationRepository creates a new repository.
func NewSQLiteInvitationRepository(conn database.Connection) *SQLiteInvitationRepository {
	return &SQLiteInvitationRepository{conn: conn}
}

// Create inserts a new invitation.
func (r *SQLiteInvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO family_invitations (`+invitationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT DO NOTHING`,
		inv.ID().String(),
		inv.PlanID().String(),
		inv.Email(),
		inv.InviterID().String(),
		inv.TokenHash(),
		string(inv.Status()),
		sqlite.FormatTime(inv.ExpiresAt()),
		nullUUID(inv.AcceptedBy()),
		sqlite.FormatNullTime(inv.AcceptedAt()),
		sqlite.FormatTime(inv.CreatedAt()),
		sqlite.FormatTime(inv.UpdatedAt()),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("create invitation %s: %w", inv.ID(), err))
	}
	return markPersisted(result, inv, "invitation")
}

// Update writes a status transition. Every transition leaves PENDING, so the
// write is guarded on the stored row still being PENDING at the loaded
// version.
func (r *SQLiteInvitationRepository) Update(ctx context.Context, inv *domain.Invitation) error {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE family_invitations
		SET status = ?, accepted_by = ?, accepted_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ?`,
		string(inv.Status()),
		nullUUID(inv.AcceptedBy()),
		sqlite.FormatNullTime(inv.AcceptedAt()),
		sqlite.FormatTime(inv.UpdatedAt()),
		inv.ID().String(),
		inv.Version(),
		string(domain.InvitationPending),
	)
	if err != nil {
		return database.StoreError(fmt.Errorf("update invitation %s: %w", inv.ID(), err))
	}
	return markPersisted(result, inv, "invitation")
}

// FindByID returns an invitation by id.
func (r *SQLiteInvitationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE id = ?`, id.String())
	return scanOneSQLiteInvitation(row)
}

// FindByTokenHash returns the invitation issued with the token whose digest
// is tokenHash.
func (r *SQLiteInvitationRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE token_hash = ?`, tokenHash)
	return scanOneSQLiteInvitation(row)
}

// ListByPlan returns every invitation of a plan, oldest first.
func (r *SQLiteInvitationRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE family_plan_id = ? ORDER BY created_at, id`,
		planID.String())
}

// ListByPlanAndEmail returns the invitations a plan sent to one address.
func (r *SQLiteInvitationRepository) ListByPlanAndEmail(ctx context.Context, planID uuid.UUID, email string) ([]*domain.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM family_invitations WHERE family_plan_id = ? AND email = ? ORDER BY created_at, id`,
		planID.String(), email)
}

func (r *SQLiteInvitationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invitation, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, database.StoreError(err)
	}
	defer rows.Close()

	var invitations []*domain.Invitation
	for rows.Next() {
		inv, err := scanSQLiteInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StoreError(err)
	}
	return invitations, nil
}

func scanOneSQLiteInvitation(row database.Row) (*domain.Invitation, error) {
	inv, err := scanSQLiteInvitation(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, database.StoreError(err)
	}
	return inv, nil
}

func scanSQLiteInvitation(row database.Row) (*domain.Invitation, error) {
	var (
		id, planID, email, inviterID, tokenHash, status string
		expiresAt, createdAt, updatedAt                 string
		acceptedBy, acceptedAt                          sql.NullString
		version                                         int
	)
	err := row.Scan(
		&id, &planID, &email, &inviterID, &tokenHash, &status, &expiresAt,
		&acceptedBy, &acceptedAt, &version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	invID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invitation id: %w", err)
	}
	plan, err := uuid.Parse(planID)
	if err != nil {
		return nil, fmt.Errorf("invalid invitation family_plan_id: %w", err)
	}
	inviter, err := uuid.Parse(inviterID)
	if err != nil {
		return nil, fmt.Errorf("invalid invitation inviter_id: %w", err)
	}
	var acceptor *uuid.UUID
	if acceptedBy.Valid {
		parsed, err := uuid.Parse(acceptedBy.String)
		if err != nil {
			return nil, fmt.Errorf("invalid invitation accepted_by: %w", err)
		}
		acceptor = &parsed
	}
	expires, err := sqlite.ParseTime(expiresAt)
	if err != nil {
		return nil, err
	}
	accepted, err := sqlite.ParseNullTime(acceptedAt)
	if err != nil {
		return nil, err
	}
	created, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := sqlite.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateInvitation(
		invID, plan, email, inviter, tokenHash,
		domain.InvitationStatus(status), expires,
		acceptor, accepted,
		created, updated, version,
	), nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

var _ domain.InvitationRepository = (*SQLiteInvitationRepository)(nil)
