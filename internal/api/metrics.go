package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry              *prometheus.Registry
	requestTotal          *prometheus.CounterVec
	requestDuration       *prometheus.HistogramVec
	rateLimitRejected     *prometheus.CounterVec
	sessionsOpened        prometheus.Counter
	savesTotal            *prometheus.CounterVec
	notificationsEnqueued *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixeledit_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeledit_sessions_opened_total",
			Help: "Total editor sessions opened.",
		}),
		savesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_saves_total",
			Help: "Total saves by outcome: local raster, remote (metadata only) or failed.",
		}, []string{"outcome"}),
		notificationsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_queue_notifications_enqueued_total",
			Help: "Total media:edited notifications enqueued.",
		}, []string{"queue"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.sessionsOpened,
		m.savesTotal,
		m.notificationsEnqueued,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// routeLabel collapses ids so label cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "v1" && parts[1] == "sessions":
		switch len(parts) {
		case 2:
			return "/v1/sessions"
		case 3:
			return "/v1/sessions/{id}"
		default:
			return "/v1/sessions/{id}/" + parts[3]
		}
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "media" && parts[3] == "edits":
		return "/v1/media/{id}/edits"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
