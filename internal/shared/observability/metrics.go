package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apimatch_parsing_seconds",
		Help:    "Time spent extracting call sites from a source unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apimatch_parse_errors_total",
		Help: "Total number of source units skipped because they failed to parse.",
	})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apimatch_resolution_seconds",
		Help:    "Time spent resolving one step or call site.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ClassesExplored = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apimatch_classes_explored",
		Help:    "Number of classes scored by one resolution.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	MatchesEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apimatch_matches_emitted_total",
		Help: "Total number of matches emitted above threshold.",
	}, []string{"kind"})

	UnmatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apimatch_unmatched_total",
		Help: "Total number of resolutions that produced no match.",
	}, []string{"kind"})

	ReasoningRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apimatch_reasoning_requests_total",
		Help: "Reasoning port requests by outcome.",
	}, []string{"outcome"})

	ReasoningLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apimatch_reasoning_seconds",
		Help:    "Latency of reasoning port requests.",
		Buckets: prometheus.DefBuckets,
	})

	FallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apimatch_fallbacks_total",
		Help: "Total number of resolutions that fell back to heuristic scoring.",
	})

	CatalogClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apimatch_catalog_classes",
		Help: "Number of classes in the loaded catalog.",
	})

	CatalogMethods = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apimatch_catalog_methods",
		Help: "Number of methods in the loaded catalog.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apimatch_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apimatch_history_writes_total",
		Help: "Run history writes by outcome.",
	}, []string{"outcome"})
)
