// Package metrics holds the Prometheus metrics for the scheduling service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the application.
var Registry = prometheus.NewRegistry()

// factory registers metrics to our custom Registry directly
var factory = promauto.With(Registry)

// ClassificationDuration tracks time to classify one provider day.
var ClassificationDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "schedule",
	Name:      "classification_duration_seconds",
	Help:      "Time taken to classify one provider day into calendar items",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
})

// ConflictingHoursTotal counts hours classified as conflicting. A rising
// rate means upstream data is producing double-booked slots.
var ConflictingHoursTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "schedule",
	Name:      "conflicting_hours_total",
	Help:      "Number of hours classified as has-conflicting",
})

// ReschedulesTotal counts reschedule attempts by outcome.
var ReschedulesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "schedule",
	Name:      "reschedules_total",
	Help:      "Reschedule attempts by outcome",
}, []string{"outcome"})

// AvailabilityCacheLookups counts day-availability cache hits and misses.
var AvailabilityCacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "schedule",
	Name:      "availability_cache_lookups_total",
	Help:      "Day availability cache lookups by result",
}, []string{"result"})

// HTTPRequestDuration tracks request latency per route and status.
var HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by method, route and status code",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
}, []string{"method", "route", "status"})
