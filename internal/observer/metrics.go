package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for handoff lifecycle metrics
	handoffLabels = []string{"tenant_id"}
	// Labels for pickup outcomes
	pickupLabels = []string{"tenant_id", "outcome"}
	// Labels for relayed messages
	messageLabels = []string{"tenant_id", "sender_kind"}
	// Labels for published notifier events
	eventLabels = []string{"tenant_id", "kind", "channel"}
	// Labels for database operation durations
	dbOperationLabels = []string{"operation", "entity", "tenant_id", "status"}

	HandoffsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_handoffs_created_total",
			Help: "Total number of handoff requests created as pending.",
		},
		handoffLabels,
	)
	HandoffsFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_handoffs_fallback_total",
			Help: "Total number of handoffs closed via the after-hours contact capture path.",
		},
		handoffLabels,
	)
	PickupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_pickups_total",
			Help: "Total number of pickup attempts, labeled by outcome (won, already_assigned, capacity_exceeded, unavailable, error).",
		},
		pickupLabels,
	)
	HandoffsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_handoffs_resolved_total",
			Help: "Total number of handoffs transitioned to resolved.",
		},
		handoffLabels,
	)
	HandoffsExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_handoffs_expired_total",
			Help: "Total number of pending handoffs transitioned to expired.",
		},
		handoffLabels,
	)
	MessagesRelayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_messages_relayed_total",
			Help: "Total number of messages persisted and forwarded on active handoffs.",
		},
		messageLabels,
	)
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_events_published_total",
			Help: "Total number of notifier events published, labeled by channel scope.",
		},
		eventLabels,
	)
	EventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_event_publish_failures_total",
			Help: "Total number of notifier publish attempts that failed.",
		},
		eventLabels,
	)
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handoff_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		dbOperationLabels,
	)

	// Expiry sweeper metrics
	sweepTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_service_expiry_tasks_submitted_total",
			Help: "Total number of expiry tasks submitted to the sweeper pool.",
		},
		handoffLabels,
	)
	sweepWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "handoff_service_expiry_workers_active",
		Help: "Current number of active worker goroutines in the expiry pool.",
	})
)

// InitMetrics initializes the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// sanitizeTenant ensures the tenant label is valid or returns a default value.
func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}

// IncHandoffsCreated increments the created counter.
func IncHandoffsCreated(tenant string) {
	if !metricsEnabled {
		return
	}
	HandoffsCreatedTotal.WithLabelValues(sanitizeTenant(tenant)).Inc()
}

// IncHandoffsFallback increments the after-hours fallback counter.
func IncHandoffsFallback(tenant string) {
	if !metricsEnabled {
		return
	}
	HandoffsFallbackTotal.WithLabelValues(sanitizeTenant(tenant)).Inc()
}

// IncPickup increments the pickup counter for the given outcome.
func IncPickup(tenant, outcome string) {
	if !metricsEnabled {
		return
	}
	PickupsTotal.WithLabelValues(sanitizeTenant(tenant), outcome).Inc()
}

// IncHandoffsResolved increments the resolved counter.
func IncHandoffsResolved(tenant string) {
	if !metricsEnabled {
		return
	}
	HandoffsResolvedTotal.WithLabelValues(sanitizeTenant(tenant)).Inc()
}

// IncHandoffsExpired increments the expired counter.
func IncHandoffsExpired(tenant string) {
	if !metricsEnabled {
		return
	}
	HandoffsExpiredTotal.WithLabelValues(sanitizeTenant(tenant)).Inc()
}

// IncMessagesRelayed increments the relayed message counter.
func IncMessagesRelayed(tenant, senderKind string) {
	if !metricsEnabled {
		return
	}
	MessagesRelayedTotal.WithLabelValues(sanitizeTenant(tenant), senderKind).Inc()
}

// IncEventsPublished increments the published event counter.
func IncEventsPublished(tenant, kind, channel string) {
	if !metricsEnabled {
		return
	}
	EventsPublishedTotal.WithLabelValues(sanitizeTenant(tenant), kind, channel).Inc()
}

// IncEventPublishFailure increments the publish failure counter.
func IncEventPublishFailure(tenant, kind, channel string) {
	if !metricsEnabled {
		return
	}
	EventPublishFailuresTotal.WithLabelValues(sanitizeTenant(tenant), kind, channel).Inc()
}

// IncSweepTasksSubmitted increments the counter for tasks submitted to the expiry pool.
func IncSweepTasksSubmitted(tenant string) {
	if !metricsEnabled {
		return
	}
	sweepTasksSubmittedTotal.WithLabelValues(sanitizeTenant(tenant)).Inc()
}

// SetSweepWorkersActive sets the current number of active expiry workers.
func SetSweepWorkersActive(count int) {
	if !metricsEnabled {
		return
	}
	sweepWorkersActive.Set(float64(count))
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, tenantID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeTenant(tenantID), status).Observe(duration.Seconds())
}
