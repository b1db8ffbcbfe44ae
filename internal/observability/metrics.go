package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the HTTP surface, the dispatch
// engine and the acknowledgement reconciler.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	messagesSentTotal   *prometheus.CounterVec
	messagesFailedTotal *prometheus.CounterVec
	sendDuration        *prometheus.HistogramVec
	dispatchJobsTotal   *prometheus.CounterVec
	dispatchInFlight    prometheus.Gauge
	acksAppliedTotal    *prometheus.CounterVec
	acksDroppedTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "serverwpp",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "messages_sent_total",
				Help:      "Total number of messages accepted by the transport.",
			},
			[]string{"kind"},
		),
		messagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "messages_failed_total",
				Help:      "Total number of messages that ended in ERROR state or were skipped.",
			},
			[]string{"kind", "reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "serverwpp",
				Name:      "send_duration_seconds",
				Help:      "Transport send duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		dispatchJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "dispatch_jobs_total",
				Help:      "Total number of bulk dispatch jobs by outcome.",
			},
			[]string{"outcome"},
		),
		dispatchInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "serverwpp",
				Name:      "dispatch_in_flight",
				Help:      "Whether a bulk dispatch job currently holds the outbound channel.",
			},
		),
		acksAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "acks_applied_total",
				Help:      "Total number of delivery acknowledgements applied, by resulting status.",
			},
			[]string{"status"},
		),
		acksDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverwpp",
				Name:      "acks_dropped_total",
				Help:      "Total number of delivery acknowledgements dropped, by reason.",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesSentTotal,
		m.messagesFailedTotal,
		m.sendDuration,
		m.dispatchJobsTotal,
		m.dispatchInFlight,
		m.acksAppliedTotal,
		m.acksDroppedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncMessageSent(kind string) {
	if m == nil {
		return
	}
	m.messagesSentTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncMessageFailed(kind string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := normalizeLabel(reason)
	m.messagesFailedTotal.WithLabelValues(normalizeLabel(kind), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}

func (m *Metrics) IncDispatchJob(outcome string) {
	if m == nil {
		return
	}
	m.dispatchJobsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) SetDispatchInFlight(active bool) {
	if m == nil {
		return
	}
	if active {
		m.dispatchInFlight.Set(1)
		return
	}
	m.dispatchInFlight.Set(0)
}

func (m *Metrics) IncAckApplied(status string) {
	if m == nil {
		return
	}
	m.acksAppliedTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncAckDropped(reason string) {
	if m == nil {
		return
	}
	m.acksDroppedTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
