package notify

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/perks/internal/family/domain"
)

// LogNotifier writes notifications to the log. Tokens are never logged.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	attrs := []any{
		"type", msg.Type,
		"plan_id", msg.PlanID,
		"has_token", msg.Token != "",
	}
	if msg.UserID != nil {
		attrs = append(attrs, "user_id", *msg.UserID)
	}
	if msg.Email != "" {
		attrs = append(attrs, "email", msg.Email)
	}
	n.logger.InfoContext(ctx, msg.Message, attrs...)
	return nil
}
