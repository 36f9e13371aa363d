package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compiler_compiles_total",
		Help: "Model compilations by outcome",
	}, []string{"outcome"})

	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "compiler_compile_duration_seconds",
		Help:    "Time spent resolving and emitting a model",
		Buckets: prometheus.DefBuckets,
	})

	skippedNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compiler_skipped_nodes_total",
		Help: "Constraint nodes that could not be wired and produced no text",
	})
)
