package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_attempts_total",
		Help: "Solver attempts by backend and outcome (solutions, no_solution, stderr, timeout, failed)",
	}, []string{"backend", "outcome"})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_attempt_duration_seconds",
		Help:    "Duration of a single solver attempt",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"backend"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Finished runs by outcome (solved, unsolved, errored)",
	}, []string{"outcome"})
)
