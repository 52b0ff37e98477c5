// Package metrics holds Prometheus instrumentation around the ingest,
// query, and analysis paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus counters and histograms for the change
// intelligence service.
type Metrics struct {
	EventsIngestedTotal  prometheus.Counter
	EventsDedupedTotal   prometheus.Counter
	IngestErrorsTotal    prometheus.Counter
	IngestLatency        prometheus.Histogram
	QueryLatency         *prometheus.HistogramVec
	CorrelateDuration    prometheus.Histogram
	BlastRadiusDuration  prometheus.Histogram
	TriageDuration       prometheus.Histogram
	GraphReloadsTotal    prometheus.Counter
	GraphReloadFailures  prometheus.Counter
	StoreSize            prometheus.Gauge
}

// New creates and registers the service's Prometheus metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "changeintel_events_ingested_total",
			Help: "Total number of change events successfully ingested.",
		}),
		EventsDedupedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "changeintel_events_deduped_total",
			Help: "Total number of ingest requests resolved by idempotency-key dedupe.",
		}),
		IngestErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "changeintel_ingest_errors_total",
			Help: "Total number of ingest requests that failed validation or storage.",
		}),
		IngestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "changeintel_ingest_latency_seconds",
			Help:    "Latency of a single change-event ingest, end to end.",
			Buckets: prometheus.DefBuckets,
		}),
		QueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "changeintel_query_latency_seconds",
			Help:    "Latency of event query and search operations, by operation name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		CorrelateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "changeintel_correlate_duration_seconds",
			Help:    "Duration of a correlate analysis call.",
			Buckets: prometheus.DefBuckets,
		}),
		BlastRadiusDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "changeintel_blast_radius_duration_seconds",
			Help:    "Duration of a blast-radius prediction call.",
			Buckets: prometheus.DefBuckets,
		}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "changeintel_triage_duration_seconds",
			Help:    "Duration of a triage call.",
			Buckets: prometheus.DefBuckets,
		}),
		GraphReloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "changeintel_graph_reloads_total",
			Help: "Total number of successful dependency-graph file reloads.",
		}),
		GraphReloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "changeintel_graph_reload_failures_total",
			Help: "Total number of dependency-graph file watcher startups that failed, including an unreadable or invalid initial file; later reload failures are not counted.",
		}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "changeintel_store_events",
			Help: "Current number of change events held by the store.",
		}),
	}

	reg.MustRegister(
		m.EventsIngestedTotal,
		m.EventsDedupedTotal,
		m.IngestErrorsTotal,
		m.IngestLatency,
		m.QueryLatency,
		m.CorrelateDuration,
		m.BlastRadiusDuration,
		m.TriageDuration,
		m.GraphReloadsTotal,
		m.GraphReloadFailures,
		m.StoreSize,
	)
	return m
}
