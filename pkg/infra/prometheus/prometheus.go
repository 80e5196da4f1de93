package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		5, 10, 25, // Fast responses (5-25ms)
		50, 100, 250, // Normal responses (50-250ms)
		500, 1000, 2500, // Slower responses (500ms-2.5s)
		5000, 10000, 30000, // Very slow/timeout (5s-30s)
	}

	documentBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

	RequestTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "rerankgate_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"method", "path", "status"},
	)

	RequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rerankgate_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"type"}, // type can be "total" or "upstream"
	)

	RerankDocuments = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rerankgate_rerank_documents",
			Help:    "Number of candidate documents per rerank request",
			Buckets: documentBuckets,
		},
		[]string{"model"},
	)

	RerankCacheTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "rerankgate_rerank_cache_total",
			Help: "Rerank response cache lookups by outcome",
		},
		[]string{"outcome"}, // hit or miss
	)

	Connections = promauto.With(registerer).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rerankgate_connections",
			Help: "Number of active connections",
		},
		[]string{"state"},
	)
)

type MetricsConfig struct {
	EnableLatency         bool // Basic latency metrics
	EnableUpstreamLatency bool // Upstream latency (higher cardinality)
	EnableConnections     bool // Connection tracking (can impact performance)
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency:         true,
		EnableUpstreamLatency: false,
		EnableConnections:     false,
	}
}

var Config MetricsConfig

func Initialize(cfg MetricsConfig) {
	Config = cfg
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
