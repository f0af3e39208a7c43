// Package metrics holds the Prometheus collectors shared by the API and the
// background binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargo_reroute_evaluations_total",
		Help: "Total number of route evaluations by outcome action.",
	}, []string{"action"})
	EvaluationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_reroute_evaluation_failures_total",
		Help: "Total number of evaluations that ended in an error.",
	})
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cargo_reroute_evaluation_duration_seconds",
		Help:    "Duration of a full route evaluation.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	})
	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargo_reroute_predictions_total",
		Help: "Total number of delay predictions by source (model or fallback).",
	}, []string{"source"})
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_reroute_audit_write_failures_total",
		Help: "Total number of decision log writes that failed.",
	})
	RoutesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_reroute_routes_applied_total",
		Help: "Total number of route reassignments committed.",
	})
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargo_reroute_notifications_total",
		Help: "Total number of push notification attempts by result.",
	}, []string{"result"})
)
