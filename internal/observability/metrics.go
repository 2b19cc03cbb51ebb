package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simplex_host_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grammar"})

	GrammarLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplex_host_grammar_loads_total",
		Help: "Total number of grammar descriptors resolved, by loading mode.",
	}, []string{"grammar", "mode"})

	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplex_host_parse_errors_total",
		Help: "Total number of parses whose tree contained syntax errors.",
	}, []string{"grammar"})

	IncrementalReparsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplex_host_incremental_reparses_total",
		Help: "Total number of incremental re-parses performed by sessions.",
	}, []string{"grammar"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simplex_host_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ActiveParsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simplex_host_active_parsers",
		Help: "Number of parser instances currently leased from a pool.",
	}, []string{"grammar"})
)
