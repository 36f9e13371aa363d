package runs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "runs_cache_lookups_total",
	Help: "Model cache lookups by result (hit, miss)",
}, []string{"result"})
