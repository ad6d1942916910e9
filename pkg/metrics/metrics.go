package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcontrol_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// GuestAccessChecks counts guest permission evaluations and their outcome (allowed|denied|error).
	GuestAccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcontrol_guest_access_checks_total",
			Help: "Total number of guest access resolver checks",
		},
		[]string{"operation", "result"},
	)

	// SubmissionReviews counts submission review decisions by outcome (approved|rejected).
	SubmissionReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcontrol_submission_reviews_total",
			Help: "Total number of submission review decisions",
		},
		[]string{"decision"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postcontrol_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
