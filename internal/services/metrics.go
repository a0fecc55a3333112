package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the custom Prometheus metrics for the memory service
type Metrics struct {
	MemoriesCreated    prometheus.Counter
	MemoriesDeleted    prometheus.Counter
	SimilaritySearches prometheus.Counter
	StoreErrors        *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics registers the service metrics on the default registry. Call
// once from main; service code tolerates metrics being absent (tests).
func InitMetrics() *Metrics {
	globalMetrics = &Metrics{
		MemoriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memvault_memories_created_total",
			Help: "Total number of memory records created (including batch inserts)",
		}),
		MemoriesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memvault_memories_deleted_total",
			Help: "Total number of memory records hard-deleted",
		}),
		SimilaritySearches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memvault_similarity_searches_total",
			Help: "Total number of similarity searches executed",
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memvault_store_errors_total",
			Help: "Total number of store failures by operation",
		}, []string{"operation"}),
	}
	return globalMetrics
}

// GetMetrics returns the registered metrics, or nil before InitMetrics.
func GetMetrics() *Metrics {
	return globalMetrics
}
