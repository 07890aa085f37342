// Package metrics exposes Prometheus collectors for the booking core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mentorship"

type Metrics struct {
	registry *prometheus.Registry

	reservations         *prometheus.CounterVec
	meetingFallbacks     prometheus.Counter
	notificationFailures *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation and summon attempts by outcome.",
		}, []string{"kind", "outcome"}),
		meetingFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meeting_link_fallbacks_total",
			Help:      "Bookings that got a placeholder meeting link.",
		}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}, []string{"kind"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reservations,
		m.meetingFallbacks,
		m.notificationFailures,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) ObserveReservation(kind, outcome string) {
	m.reservations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveMeetingLinkFallback() {
	m.meetingFallbacks.Inc()
}

func (m *Metrics) ObserveNotificationFailure(kind string) {
	m.notificationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
