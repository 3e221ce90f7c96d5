package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
)

// Metrics holds the Prometheus collectors of the journal service.
type Metrics struct {
	registry       *prometheus.Registry
	evaluations    *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	sweepDuration  prometheus.Histogram
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_medal_evaluations_total",
				Help: "Total number of medal evaluations, by resulting tier",
			},
			[]string{"tier"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_medal_transitions_total",
				Help: "Total number of medal tier changes",
			},
			[]string{"from", "to"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_notifications_total",
				Help: "Achievement notifications, by delivery status",
			},
			[]string{"status"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "journal_medal_sweep_duration_seconds",
				Help:    "Duration of a full medal sweep over all traders",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.evaluations,
		m.transitions,
		m.notifications,
		m.requests,
		m.requestLatency,
		m.sweepDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvaluation(tier medal.Tier) {
	m.evaluations.WithLabelValues(tier.String()).Inc()
}

func (m *Metrics) ObserveTransition(from, to medal.Tier) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveNotification records a delivery attempt; status is "sent" or "failed".
func (m *Metrics) ObserveNotification(status string) {
	m.notifications.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.requests.WithLabelValues(route, status).Inc()
	m.requestLatency.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) ObserveSweep(seconds float64) {
	m.sweepDuration.Observe(seconds)
}
