package handler

import (
	"net/http"

	"github.com/mailforge/campaign-pipeline/internal/queue"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q *queue.JobQueue
}

func NewMetricsHandler(q *queue.JobQueue) *MetricsHandler {
	return &MetricsHandler{q: q}
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"queue": map[string]int{
			"depth":     h.q.Depth(),
			"dead":      h.q.DeadCount(),
			"completed": h.q.CompletedCount(),
		},
	})
}
