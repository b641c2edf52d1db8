package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetricsRegistry records vault operation activity for the HTTP tier.
type VaultMetricsRegistry struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetricsRegistry
)

// VaultMetrics returns the lazily-initialised metrics registry for vault
// operations.
func VaultMetrics() *VaultMetricsRegistry {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetricsRegistry{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablevault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Total vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablevault",
				Subsystem: "vault",
				Name:      "errors_total",
				Help:      "Total vault operation failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stablevault",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for vault operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(vaultRegistry.operations, vaultRegistry.errors, vaultRegistry.latency)
	})
	return vaultRegistry
}

// ObserveOperation records one completed operation. reason is a stable,
// low-cardinality failure label; the empty string marks success.
func (m *VaultMetricsRegistry) ObserveOperation(operation, reason string, started time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(operation, reason).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
