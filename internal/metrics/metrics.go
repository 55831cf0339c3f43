// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors wired through the ingestion path.
type Metrics struct {
	EventsIngested     prometheus.Counter
	ValidationRejects  prometheus.Counter
	ScoringFailures    prometheus.Counter
	EnrichmentFailures prometheus.Counter
	AlertsPublished    prometheus.Counter
	IngestDuration     prometheus.Histogram
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "honeynet_events_ingested_total",
			Help: "Events committed to the store.",
		}),
		ValidationRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "honeynet_validation_rejects_total",
			Help: "Event drafts rejected for missing or invalid fields.",
		}),
		ScoringFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "honeynet_scoring_failures_total",
			Help: "Ingestions aborted because the scorer failed.",
		}),
		EnrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "honeynet_enrichment_failures_total",
			Help: "Events committed with empty enrichment after a lookup failure.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "honeynet_alerts_published_total",
			Help: "Qualifying events handed to the alert notifier.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "honeynet_ingest_duration_seconds",
			Help:    "End-to-end ingestion latency including adapter calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EventsIngested,
		m.ValidationRejects,
		m.ScoringFailures,
		m.EnrichmentFailures,
		m.AlertsPublished,
		m.IngestDuration,
	)

	return m
}
