package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds only lpctl collectors so a textfile export carries nothing
// from the default Go/process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Invocation metrics
	Invocations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpctl_invocations_total",
			Help: "Total number of invocations by dex, mode and outcome kind",
		},
		[]string{"dex", "mode", "status"},
	)

	InvocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lpctl_invocation_duration_seconds",
			Help:    "Wall time of one invocation in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"dex", "mode"},
	)

	// Transaction metrics
	SubmitAttempts = factory.NewCounter(prometheus.CounterOpts{
		Name: "lpctl_submit_attempts_total",
		Help: "Total number of transaction submissions, resubmissions included",
	})

	BlockhashRefreshes = factory.NewCounter(prometheus.CounterOpts{
		Name: "lpctl_blockhash_refreshes_total",
		Help: "Total number of blockhash refreshes after expiry",
	})

	SimulatedComputeUnits = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "lpctl_simulated_compute_units",
		Help:    "Compute units consumed in simulation",
		Buckets: []float64{25_000, 50_000, 100_000, 200_000, 300_000, 400_000, 600_000, 800_000, 1_000_000, 1_400_000},
	})

	ConfirmDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "lpctl_confirm_duration_seconds",
		Help:    "Time from send to confirmation in seconds",
		Buckets: []float64{0.4, 0.8, 1.5, 3, 5, 10, 20, 30, 60},
	})

	TransactionBytes = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "lpctl_transaction_bytes",
		Help:    "Serialized size of the signed transaction",
		Buckets: []float64{200, 400, 600, 800, 1000, 1100, 1232},
	})

	// RPC metrics
	RPCRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpctl_rpc_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lpctl_rpc_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)

	// Pool cache metrics
	PoolCacheHits = factory.NewCounter(prometheus.CounterOpts{
		Name: "lpctl_pool_cache_hits_total",
		Help: "Total number of pool snapshot cache hits",
	})

	PoolCacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Name: "lpctl_pool_cache_misses_total",
		Help: "Total number of pool snapshot cache misses",
	})
)

// WriteTextfile writes the registry in text exposition format for a
// node_exporter textfile collector. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
