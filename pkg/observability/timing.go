package observability

import (
	"context"
	"log/slog"
	"time"
)

// Track runs fn as the named operation. fn receives a context that carries
// the operation name for its logs; the duration and outcome are recorded
// under MetricOperationDuration, MetricOperationTotal and MetricOperationErrors.
// A nil logger or metrics skips that half.
func Track[R any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func(context.Context) (R, error)) (R, error) {
	ctx = WithOperation(ctx, operation)
	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	if metrics != nil {
		tag := T("operation", operation)
		metrics.Timing(MetricOperationDuration, elapsed, tag)
		metrics.Counter(MetricOperationTotal, 1, tag)
		if err != nil {
			metrics.Counter(MetricOperationErrors, 1, tag)
		}
	}
	if logger != nil {
		logger.DebugContext(ctx, "operation finished",
			"duration_ms", elapsed.Milliseconds(),
			"failed", err != nil,
		)
	}
	return result, err
}
