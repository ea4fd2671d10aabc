package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	simulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopsim_simulations_total",
		Help: "Completed simulation runs by outcome.",
	}, []string{"outcome"})

	loopIterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopsim_loop_iterations_total",
		Help: "Loop iterations executed across all runs.",
	})

	loopProviderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopsim_provider_errors_total",
		Help: "Swap provider failures that aborted a run.",
	})
)
