// Package metrics exposes the Prometheus collectors for the sync service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific collectors.
	Registry = prometheus.NewRegistry()

	syncLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "noghresod",
			Subsystem: "sync",
			Name:      "loads_total",
			Help:      "Terminal outcomes of resource loads (fresh, fetched, fallback, error).",
		},
		[]string{"resource", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "noghresod",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of local API requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "noghresod",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of local API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(syncLoads, httpRequests, httpDuration)
	Registry.MustRegister(collectors.NewGoCollector())
}

// ObserveLoad records the terminal outcome of one resource load.
func ObserveLoad(resource, outcome string) {
	syncLoads.WithLabelValues(resource, outcome).Inc()
}

// ObserveRequest records one handled local API request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
