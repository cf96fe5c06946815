package main

import (
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/perks/internal/app"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
)

// healthMux serves processor stats on /healthz, dependency checks on /readyz
// and Prometheus metrics on /metrics.
func healthMux(processor *outbox.Processor, c *app.Container) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"lag_seconds":       stats.LagSeconds,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})
	mux.Handle("GET /readyz", c.Health.Handler())
	mux.Handle("GET /metrics", c.Metrics.Handler())
	return mux
}
