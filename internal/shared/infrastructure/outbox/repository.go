package outbox

import (
	"context"
	"time"
)

// Writer appends events to the outbox. Inside a unit of work the rows join
// the caller's transaction, so they commit with the state change they describe.
type Writer interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error
}

// Repository is the processor's view of the outbox table.
type Repository interface {
	Writer

	// GetUnpublished returns up to limit messages that are neither published
	// nor dead-lettered and whose retry slot has come, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed bumps the retry count and parks the message until nextRetryAt.
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error

	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld purges published messages older than the retention window and
	// reports how many were removed.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
