package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	wireRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keywire",
			Subsystem: "wire",
			Name:      "requests_total",
			Help:      "Total wire records served.",
		},
		[]string{"server", "kind", "outcome"},
	)
	wireDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keywire",
			Subsystem: "wire",
			Name:      "request_duration_seconds",
			Help:      "Wire record service time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "kind", "outcome"},
	)
	wireDecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keywire",
			Subsystem: "wire",
			Name:      "decode_failures_total",
			Help:      "Records rejected before dispatch.",
		},
		[]string{"server", "kind", "reason"},
	)
	wireInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "keywire",
			Subsystem: "wire",
			Name:      "inflight_requests",
			Help:      "Records currently being served.",
		},
		[]string{"server"},
	)
	wireHandshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keywire",
			Subsystem: "wire",
			Name:      "handshakes_total",
			Help:      "Session handshake outcomes.",
		},
		[]string{"server", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keywire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"server", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keywire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			wireRequests,
			wireDuration,
			wireDecodeFailures,
			wireInFlight,
			wireHandshakes,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordWireRequest(server, kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	wireRequests.WithLabelValues(server, kind, outcome).Inc()
	wireDuration.WithLabelValues(server, kind, outcome).Observe(duration.Seconds())
}

func RecordDecodeFailure(server, kind, reason string) {
	RegisterMetrics()
	wireDecodeFailures.WithLabelValues(server, kind, reason).Inc()
}

func RecordHandshake(server, result string) {
	RegisterMetrics()
	wireHandshakes.WithLabelValues(server, result).Inc()
}

func IncInFlight(server string) {
	RegisterMetrics()
	wireInFlight.WithLabelValues(server).Inc()
}

func DecInFlight(server string) {
	RegisterMetrics()
	wireInFlight.WithLabelValues(server).Dec()
}

func RecordHTTPRequest(server, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(server, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(server, method, path, statusLabel).Observe(duration.Seconds())
}
