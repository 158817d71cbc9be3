package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpbmock",
			Subsystem: "session",
			Name:      "sessions_total",
			Help:      "Mock sessions by terminal outcome.",
		},
		[]string{"outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tcpbmock",
			Subsystem: "session",
			Name:      "session_duration_seconds",
			Help:      "Mock session duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpbmock",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Frames received from or sent to clients.",
		},
		[]string{"direction", "type"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpbmock",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tcpbmock",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionsTotal, sessionDuration, framesTotal, httpRequests, httpDuration)
	})
}

// RecordSession counts one finished session. outcome is "done" or "failed".
func RecordSession(outcome string, duration time.Duration) {
	RegisterMetrics()
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordFrame counts one frame. direction is "recv" or "send".
func RecordFrame(direction, messageType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, messageType).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
