package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "turbo_slide"
)

var (
	// Subscribers tracks connected push subscribers per deck
	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of connected push subscribers",
		},
		[]string{"deck"},
	)

	// CurrentSlide tracks the broadcast cursor per deck
	CurrentSlide = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_slide",
			Help:      "Slide the presenter is currently on",
		},
		[]string{"deck"},
	)

	// BroadcastsTotal counts slide changes
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of slide change broadcasts",
		},
		[]string{"deck"},
	)

	// PushFailuresTotal counts failed writes to subscribers
	PushFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Total number of failed pushes to subscribers",
		},
		[]string{"deck"},
	)

	// ImportsTotal counts PDF import runs
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Total number of PDF import runs",
		},
		[]string{"status"}, // converted/skipped/failed
	)

	// RequestsTotal counts HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "code"},
	)

	// RequestDuration measures HTTP latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method"},
	)
)

// Handler exposes the registered metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
