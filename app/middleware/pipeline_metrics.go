package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publishing pipeline metrics. These are recorded by the publish scheduler and
// the webhook ingestion path, not by HTTP middleware, but they live here with
// the rest of the Prometheus instrumentation.
var (
	// PublishAttemptsTotal counts publish attempts partitioned by platform
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_attempts_total",
			Help: "Total number of publish attempts against platform APIs",
		},
		[]string{"platform"},
	)

	// PublishResultsTotal counts terminal publish outcomes partitioned by platform and result
	PublishResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_results_total",
			Help: "Total number of publish outcomes (published, failed, dry_run)",
		},
		[]string{"platform", "result"},
	)

	// ScheduleClaimsTotal counts schedule claim attempts and their outcome
	ScheduleClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_claims_total",
			Help: "Total number of schedule claim attempts (won, lost)",
		},
		[]string{"outcome"},
	)

	// SchedulesReleasedTotal counts stale publishing schedules returned to due
	SchedulesReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schedules_released_total",
			Help: "Total number of stale claimed schedules released back to due",
		},
	)

	// DLQDepth tracks the number of entries currently in the dead letter queue
	DLQDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "publish_dlq_depth",
			Help: "Number of entries in the publish dead letter queue",
		},
	)

	// WebhookEventsTotal counts webhook deliveries partitioned by platform and disposition
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries (accepted, duplicate, rejected)",
		},
		[]string{"platform", "disposition"},
	)

	// TokenRefreshesTotal counts credential refresh attempts partitioned by platform and outcome
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"platform", "outcome"},
	)
)
