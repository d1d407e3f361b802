// Package metrics exposes the Prometheus collectors for the aid service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	applicationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "applications",
			Name:      "transitions_total",
			Help:      "Application status transitions by source and target status.",
		},
		[]string{"from", "to"},
	)

	interviewBookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "interviews",
			Name:      "bookings_total",
			Help:      "Interview booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	paymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "payments",
			Name:      "processed_total",
			Help:      "Payment processing attempts by outcome.",
		},
		[]string{"outcome"},
	)

	paymentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "payments",
			Name:      "created_total",
			Help:      "Payments materialized from applications by outcome.",
		},
		[]string{"outcome"},
	)

	distributionLogs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "distribution",
			Name:      "logs_written_total",
			Help:      "Distribution log rows written by trigger.",
		},
		[]string{"trigger"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship_aid",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarship_aid",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		applicationTransitions,
		interviewBookings,
		paymentsProcessed,
		paymentsCreated,
		distributionLogs,
		httpRequests,
		httpDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordTransition(from, to string) {
	applicationTransitions.WithLabelValues(from, to).Inc()
}

func RecordInterviewBooking(outcome string) {
	interviewBookings.WithLabelValues(outcome).Inc()
}

func RecordPaymentProcessed(outcome string) {
	paymentsProcessed.WithLabelValues(outcome).Inc()
}

func RecordPaymentCreated(outcome string) {
	paymentsCreated.WithLabelValues(outcome).Inc()
}

func RecordDistributionLogs(trigger string, count int) {
	if count <= 0 {
		return
	}
	distributionLogs.WithLabelValues(trigger).Add(float64(count))
}

func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}
