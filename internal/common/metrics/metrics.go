// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_emails_processed_total",
			Help: "Total number of inbound emails processed",
		},
		[]string{"action"},
	)

	EmailsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_emails_failed_total",
			Help: "Total number of inbound emails that failed processing",
		},
		[]string{"action", "error_code"},
	)

	EmailsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_emails_skipped_total",
			Help: "Total number of inbound emails skipped",
		},
		[]string{"reason"},
	)

	AssignmentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_assignments_created_total",
			Help: "Total number of assignment records created",
		},
		[]string{"status"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "intake_action_duration_seconds",
			Help: "Duration of per-email action processing in seconds",
		},
		[]string{"action"},
	)

	PassesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intake_passes_active",
			Help: "Whether a processing pass is currently running",
		},
		[]string{"service"},
	)
)
