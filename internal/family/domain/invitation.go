package domain

import (
	"net/mail"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
)

// DefaultInvitationTTL is how long an invitation stays acceptable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// Invitation offers a seat on a plan to an email address. It leaves PENDING
// exactly once and is kept afterwards for audit.
type Invitation struct {
	sharedDomain.BaseAggregateRoot
	planID     uuid.UUID
	email      string
	inviterID  uuid.UUID
	tokenHash  string
	status     InvitationStatus
	expiresAt  time.Time
	acceptedBy *uuid.UUID
	acceptedAt *time.Time
}

// NormalizeEmail lower-cases and trims an address and rejects anything that
// is not a bare address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail.WithMessage("email address %q is malformed", raw)
	}
	return email, nil
}

// NewInvitation issues a pending invitation expiring ttl after now.
func NewInvitation(planID uuid.UUID, email string, inviterID uuid.UUID, tokenHash string, ttl time.Duration, now time.Time) (*Invitation, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}

	inv := &Invitation{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		planID:            planID,
		email:             normalized,
		inviterID:         inviterID,
		tokenHash:         tokenHash,
		status:            InvitationPending,
		expiresAt:         now.UTC().Add(ttl),
	}
	inv.AddDomainEvent(NewInvitationCreated(inv, now))
	return inv, nil
}

// RehydrateInvitation recreates an invitation from persisted state.
func RehydrateInvitation(
	id, planID uuid.UUID,
	email string,
	inviterID uuid.UUID,
	tokenHash string,
	status InvitationStatus,
	expiresAt time.Time,
	acceptedBy *uuid.UUID,
	acceptedAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) *Invitation {
	return &Invitation{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(id, createdAt, updatedAt, version),
		planID:            planID,
		email:             email,
		inviterID:         inviterID,
		tokenHash:         tokenHash,
		status:            status,
		expiresAt:         expiresAt,
		acceptedBy:        acceptedBy,
		acceptedAt:        acceptedAt,
	}
}

func (i *Invitation) PlanID() uuid.UUID        { return i.planID }
func (i *Invitation) Email() string            { return i.email }
func (i *Invitation) InviterID() uuid.UUID     { return i.inviterID }
func (i *Invitation) TokenHash() string        { return i.tokenHash }
func (i *Invitation) Status() InvitationStatus { return i.status }
func (i *Invitation) ExpiresAt() time.Time     { return i.expiresAt }
func (i *Invitation) AcceptedBy() *uuid.UUID   { return i.acceptedBy }
func (i *Invitation) AcceptedAt() *time.Time   { return i.acceptedAt }

// IsExpiredAt reports whether t lies past the expiry instant.
func (i *Invitation) IsExpiredAt(t time.Time) bool {
	return t.After(i.expiresAt)
}

// EffectiveStatus is the status as of now: a pending invitation past its
// expiry reads as EXPIRED even before that is stored.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.status == InvitationPending && i.IsExpiredAt(now) {
		return InvitationExpired
	}
	return i.status
}

// IsActivePending reports whether the invitation still holds a seat.
func (i *Invitation) IsActivePending(now time.Time) bool {
	return i.EffectiveStatus(now) == InvitationPending
}

// Expire stores the lazy expiry. It reports whether anything changed.
func (i *Invitation) Expire(now time.Time) bool {
	if i.status != InvitationPending || !i.IsExpiredAt(now) {
		return false
	}
	i.status = InvitationExpired
	i.Touch(now)
	return true
}

// Accept marks the invitation used by userID.
func (i *Invitation) Accept(userID uuid.UUID, now time.Time) error {
	if !i.IsActivePending(now) {
		return ErrInvalidOrExpiredInvitation
	}
	at := now.UTC()
	id := userID
	i.status = InvitationAccepted
	i.acceptedBy = &id
	i.acceptedAt = &at
	i.Touch(now)
	i.AddDomainEvent(NewInvitationAccepted(i, userID, now))
	return nil
}

// Revoke withdraws a pending invitation.
func (i *Invitation) Revoke(now time.Time) error {
	if !i.IsActivePending(now) {
		return ErrInvalidOrExpiredInvitation
	}
	i.status = InvitationRevoked
	i.Touch(now)
	i.AddDomainEvent(NewInvitationRevoked(i, now))
	return nil
}
