package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	notificationsTotal   *prometheus.CounterVec
	notificationDuration *prometheus.HistogramVec
	pixelsProcessedTotal prometheus.Counter
	outputBytesTotal     prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_worker_notifications_total",
			Help: "Total media:edited tasks by final outcome.",
		}, []string{"outcome"}),
		notificationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixeledit_worker_notification_duration_seconds",
			Help:    "Time spent handling each media:edited task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeledit_edits_pixels_processed_total",
			Help: "Total source pixels rendered locally across recorded saves.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeledit_edits_output_bytes_total",
			Help: "Total bytes of rendered rasters uploaded across recorded saves.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeledit_edits_compute_time_ms_total",
			Help: "Total local render time in milliseconds across recorded saves.",
		}),
	}

	registry.MustRegister(
		m.notificationsTotal,
		m.notificationDuration,
		m.pixelsProcessedTotal,
		m.outputBytesTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
