package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationCodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_codes_issued_total",
			Help: "Verification codes issued, by kind and delivery method",
		},
		[]string{"kind", "method"},
	)

	VerificationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_checks_total",
			Help: "Verification attempts, by kind and result",
		},
		[]string{"kind", "result"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification deliveries, by type, channel and result",
		},
		[]string{"type", "channel", "result"},
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Scheduled job runs, by job and result",
		},
		[]string{"job", "result"},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
