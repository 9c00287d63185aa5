package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the ingestion path. Registered on the default
// registry and served by promhttp on /metrics.
var (
	LogUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctoring_log_upserts_total",
		Help: "Cheating log snapshots merged into the store.",
	})

	LogRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctoring_log_rejects_total",
		Help: "Cheating log snapshots rejected before any merge.",
	})

	ViolationSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctoring_violation_snapshots_total",
		Help: "Snapshots reporting at least one violation of the given type.",
	}, []string{"type"})

	ScreenshotsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctoring_screenshots_stored_total",
		Help: "Evidence screenshots appended to logs.",
	})
)
