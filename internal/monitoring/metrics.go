package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)
)

// Prometheus metrics for the vault service
var (
	// HTTP request metrics
	RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msv_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msv_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ActiveConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "msv_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// Vault operation metrics
	StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msv_store_operations_total",
			Help: "Total number of encrypt-and-store operations",
		},
		[]string{"backend", "status"},
	)

	RetrieveOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msv_retrieve_operations_total",
			Help: "Total number of retrieve-and-decrypt operations",
		},
		[]string{"backend", "status"},
	)

	OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msv_operation_duration_seconds",
			Help:    "Vault operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	PayloadBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msv_payload_bytes",
			Help:    "Plaintext payload sizes in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"operation"},
	)

	IntegrityFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msv_integrity_failures_total",
			Help: "Retrievals whose post-decrypt hash did not match the receipt",
		},
		[]string{"backend"},
	)
)

// VaultMetrics adapts the prometheus collectors to the vault's metrics
// interface.
type VaultMetrics struct{}

// NewVaultMetrics returns a recorder backed by the package collectors.
func NewVaultMetrics() *VaultMetrics {
	return &VaultMetrics{}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordStore records the outcome of a store operation.
func (m *VaultMetrics) RecordStore(backend string, bytes int, duration time.Duration, err error) {
	StoreOperationsTotal.WithLabelValues(backend, statusLabel(err)).Inc()
	OperationDuration.WithLabelValues("store", backend).Observe(duration.Seconds())
	if err == nil {
		PayloadBytes.WithLabelValues("store").Observe(float64(bytes))
	}
}

// RecordRetrieve records the outcome of a retrieve operation.
func (m *VaultMetrics) RecordRetrieve(backend string, bytes int, verified bool, duration time.Duration, err error) {
	RetrieveOperationsTotal.WithLabelValues(backend, statusLabel(err)).Inc()
	OperationDuration.WithLabelValues("retrieve", backend).Observe(duration.Seconds())
	if err == nil {
		PayloadBytes.WithLabelValues("retrieve").Observe(float64(bytes))
		if !verified {
			IntegrityFailuresTotal.WithLabelValues(backend).Inc()
		}
	}
}
