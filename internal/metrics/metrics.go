// Package metrics holds the Prometheus collectors shared by the agent runtime,
// the providers and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skycast"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	// TurnsTotal counts completed and aborted conversation turns
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "turns_total",
		Help:      "Conversation turns by outcome",
	}, []string{"status"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "turn_duration_seconds",
		Help:      "Wall time of one conversation turn",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	HandoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "handoffs_total",
		Help:      "Control transfers between agents",
	}, []string{"from", "to"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "tool_calls_total",
		Help:      "Capability tool invocations by outcome",
	}, []string{"tool", "status"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Latency of outbound provider calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"provider", "op", "status"})

	GeocodeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocache",
		Name:      "lookups_total",
		Help:      "Geocode cache lookups by result",
	}, []string{"result"})

	// DependencyUp is 1 while the last check of a backing store succeeded
	DependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dependency",
		Name:      "up",
		Help:      "Result of the last background dependency check",
	}, []string{"dependency"})
)

// ObserveHTTP records one served HTTP request
func ObserveHTTP(method, path string, status int, dur time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// ObserveProvider records one outbound provider call
func ObserveProvider(provider, op string, err error, dur time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderRequestDuration.WithLabelValues(provider, op, status).Observe(dur.Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
