package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// opsMetrics instruments the HTTP surface itself. They live on their own registry so the
// domain exposition on /metrics carries only indexer histograms.
type opsMetrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
}

func newOpsMetrics() *opsMetrics {
	m := &opsMetrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "collector",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration observed by the collector.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "collector",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "collector",
				Subsystem: "http",
				Name:      "request_errors_total",
				Help:      "Total number of HTTP errors surfaced to clients.",
			},
			[]string{"method", "route", "status_class"},
		),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.requestTotal,
		m.requestErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *opsMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.record(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

func (m *opsMetrics) record(method, route string, status int, elapsed time.Duration) {
	statusCode := strconv.Itoa(status)

	m.requestDuration.WithLabelValues(method, route, statusCode).Observe(elapsed.Seconds())
	m.requestTotal.WithLabelValues(method, route, statusCode).Inc()

	if status >= 400 {
		m.requestErrors.WithLabelValues(method, route, classifyStatus(status)).Inc()
	}
}

// routeOf returns the matched route pattern, keeping label cardinality bounded.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func classifyStatus(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "none"
	}
}
