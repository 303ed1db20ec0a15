package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ftree_parsing_seconds",
		Help:    "Time spent extracting units from a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"form"})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ftree_indexed_files_total",
		Help: "Number of files held by the project index.",
	})

	GraphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ftree_graph_nodes_total",
		Help: "Number of nodes in a derived graph.",
	}, []string{"graph"})

	GraphEdges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ftree_graph_edges_total",
		Help: "Number of edges in a derived graph.",
	}, []string{"graph"})

	GraphRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftree_graph_rebuilds_total",
		Help: "Number of full rebuilds of a derived graph after the index changed.",
	}, []string{"graph"})

	ResolutionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftree_resolution_outcomes_total",
		Help: "Reference resolutions by kind (include, use, call) and outcome.",
	}, []string{"kind", "outcome"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ftree_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ftree_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
