package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	GenerationsEnqueued  = prometheus.NewCounter(prometheus.CounterOpts{Name: "generations_enqueued_total", Help: "Generation requests accepted into the queue"})
	GenerationsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "generations_succeeded_total", Help: "Generations that completed with all images"})
	GenerationsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "generations_failed_total", Help: "Generations that ended in a failed state"})
	ClaimConflicts       = prometheus.NewCounter(prometheus.CounterOpts{Name: "generations_claim_conflicts_total", Help: "Worker cycles that lost the claim race"})
	EmptyPolls           = prometheus.NewCounter(prometheus.CounterOpts{Name: "generations_empty_polls_total", Help: "Worker cycles that found no queued work"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			GenerationsEnqueued,
			GenerationsSucceeded,
			GenerationsFailed,
			ClaimConflicts,
			EmptyPolls,
		)
	})
	return promhttp.Handler()
}
