package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Attribute keys shared by log records and metric tags.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	UserIDKey        = "user_id"
	OperationKey     = "operation"
)

type scopeKey struct{}

// scope is what a request carries for its logs. Each With* call copies it, so
// a value set deeper in the call chain never leaks back to the caller.
type scope struct {
	requestID     string
	correlationID string
	operation     string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, update func(*scope)) context.Context {
	s := scopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// NewRequestContext starts the scope of an inbound request or CLI command
// with a fresh request id. The correlation id is inherited from the caller
// when one is given and generated otherwise.
func NewRequestContext(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	requestID := uuid.NewString()
	return withScope(ctx, func(s *scope) {
		s.requestID = requestID
		s.correlationID = correlationID
	})
}

// WithCorrelationID sets the correlation id, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withScope(ctx, func(s *scope) { s.correlationID = id })
}

// WithOperation names the use case running under ctx, e.g.
// "family.accept_invitation".
func WithOperation(ctx context.Context, operation string) context.Context {
	return withScope(ctx, func(s *scope) { s.operation = operation })
}

func CorrelationIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).correlationID
}

func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

func OperationFromContext(ctx context.Context) string {
	return scopeFrom(ctx).operation
}

// scopeAttrs lists the non-empty scope values as log attributes.
func scopeAttrs(ctx context.Context) []slog.Attr {
	s := scopeFrom(ctx)
	attrs := make([]slog.Attr, 0, 3)
	if s.correlationID != "" {
		attrs = append(attrs, slog.String(CorrelationIDKey, s.correlationID))
	}
	if s.requestID != "" {
		attrs = append(attrs, slog.String(RequestIDKey, s.requestID))
	}
	if s.operation != "" {
		attrs = append(attrs, slog.String(OperationKey, s.operation))
	}
	return attrs
}
