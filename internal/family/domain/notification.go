package domain

import (
	"context"

	"github.com/google/uuid"
)

// NotificationType names what a notification is about.
type NotificationType string

const (
	NotificationInvitation    NotificationType = "family.invitation"
	NotificationMemberJoined  NotificationType = "family.member_joined"
	NotificationMemberRemoved NotificationType = "family.member_removed"
	NotificationPlanCanceled  NotificationType = "family.plan_canceled"
)

// Notification is a fire-and-forget message to a user or an email address.
// Token is only set on invitations.
type Notification struct {
	Type    NotificationType `json:"type"`
	PlanID  uuid.UUID        `json:"plan_id"`
	UserID  *uuid.UUID       `json:"user_id,omitempty"`
	Email   string           `json:"email,omitempty"`
	Message string           `json:"message"`
	Token   string           `json:"token,omitempty"`
}

// Notifier delivers notifications. Handlers call it only after their unit of
// work has committed and never fail a request because delivery failed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ToUser addresses a notification to a user id.
func ToUser(userID, planID uuid.UUID, kind NotificationType, message string) Notification {
	id := userID
	return Notification{Type: kind, PlanID: planID, UserID: &id, Message: message}
}
