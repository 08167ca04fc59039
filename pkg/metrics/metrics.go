// Package metrics exposes the bridge's Prometheus metrics: the
// counters and gauges operators use to see pipeline throughput, quorum
// progress, and chain-read health without grepping logs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the bridge records, constructed once at
// startup and passed by reference to the packages that update it.
type Registry struct {
	SwapsObserved   *prometheus.CounterVec // by direction
	SwapsConfirmed  *prometheus.CounterVec // by direction
	SwapsFailed     *prometheus.CounterVec // by direction, reason
	SignaturesGiven *prometheus.CounterVec // by direction
	QuorumDuration  *prometheus.HistogramVec
	Checkpoint      *prometheus.GaugeVec // by stream, last processed block
	ChainHealth     *prometheus.GaugeVec // by chain, 1 = healthy
}

// New registers every metric against a fresh registry.
func New() *Registry {
	r := &Registry{
		SwapsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_swaps_observed_total",
			Help: "Swaps observed on their source chain, by direction.",
		}, []string{"direction"}),
		SwapsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_swaps_confirmed_total",
			Help: "Swaps that reached CONFIRMED, by direction.",
		}, []string{"direction"}),
		SwapsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_swaps_failed_total",
			Help: "Swaps that reached FAILED, by direction and reason.",
		}, []string{"direction", "reason"}),
		SignaturesGiven: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_signatures_given_total",
			Help: "Signer confirmations recorded, by direction.",
		}, []string{"direction"}),
		QuorumDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_quorum_duration_seconds",
			Help:    "Time from first observation to quorum reached, by direction.",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
		Checkpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_checkpoint_block",
			Help: "Last block number fully processed, by stream.",
		}, []string{"stream"}),
		ChainHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_chain_health",
			Help: "1 if the chain RPC/CLI endpoint answered its last health check, else 0.",
		}, []string{"chain"}),
	}

	prometheus.MustRegister(
		r.SwapsObserved, r.SwapsConfirmed, r.SwapsFailed,
		r.SignaturesGiven, r.QuorumDuration, r.Checkpoint, r.ChainHealth,
	)
	return r
}

// Handler returns the HTTP handler to mount at the metrics address.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
