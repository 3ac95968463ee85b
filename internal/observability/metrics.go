package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maintenance"

// Metrics owns a private Prometheus registry and the service's collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	httpErrors         *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	transitionFailures *prometheus.CounterVec
	ticketsCreated     *prometheus.CounterVec
	ticketsRetired     prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP requests that ended in an error envelope, by error code",
		}, []string{"method", "path", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_total",
			Help:      "Accepted ticket status transitions",
		}, []string{"category", "from", "to"}),
		transitionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transition_failures_total",
			Help:      "Rejected ticket transition requests by error code",
		}, []string{"code"}),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created by category",
		}, []string{"category"}),
		ticketsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_retired_total",
			Help:      "Tickets hidden through retirement",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.httpErrors,
		m.transitions,
		m.transitionFailures,
		m.ticketsCreated,
		m.ticketsRetired,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}

// RecordTransition counts an accepted status change.
func (m *Metrics) RecordTransition(category, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(category, from, to).Inc()
}

// RecordTransitionFailure counts a refused transition request.
func (m *Metrics) RecordTransitionFailure(code string) {
	if m == nil {
		return
	}
	m.transitionFailures.WithLabelValues(code).Inc()
}

// RecordTicketCreated counts a created ticket.
func (m *Metrics) RecordTicketCreated(category string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(category).Inc()
}

// RecordTicketRetired counts a retired ticket.
func (m *Metrics) RecordTicketRetired() {
	if m == nil {
		return
	}
	m.ticketsRetired.Inc()
}

// RegisterPgxPool exposes pgx connection pool statistics as gauges.
func (m *Metrics) RegisterPgxPool(pool *pgxpool.Pool) {
	if m == nil || pool == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_acquired_conns",
			Help: "Number of currently acquired connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_max_conns",
			Help: "Maximum number of connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().MaxConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_total_conns",
			Help: "Total number of connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_idle_conns",
			Help: "Number of idle connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
	)
}

// DeliveryCounters is implemented by the webhook worker.
type DeliveryCounters interface {
	Delivered() uint64
	Dropped() uint64
	Failed() uint64
}

// RegisterWebhookDelivery exposes webhook delivery counters.
func (m *Metrics) RegisterWebhookDelivery(c DeliveryCounters) {
	if m == nil || c == nil {
		return
	}
	counter := func(name, help string, read func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read()) })
	}
	m.registry.MustRegister(
		counter("webhook_delivered_total", "Webhook notifications delivered", c.Delivered),
		counter("webhook_dropped_total", "Webhook notifications dropped on a full queue", c.Dropped),
		counter("webhook_failed_total", "Webhook notifications that failed delivery", c.Failed),
	)
}
