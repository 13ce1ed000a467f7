package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "furniture_orders"

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	Checkouts      *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	VerifyAttempts *prometheus.CounterVec
	StockRestores  prometheus.Counter
	registry       *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Applied fulfillment transitions.",
		}, []string{"from", "to"}),
		VerifyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_attempts_total",
			Help:      "Gateway verification calls by reported outcome.",
		}, []string{"outcome"}),
		StockRestores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_restores_total",
			Help:      "Orders whose stock was credited back on cancellation.",
		}),
		registry: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Checkouts, m.Transitions, m.VerifyAttempts, m.StockRestores,
		prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *Metrics) Checkout(kind, outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) VerifyAttempt(outcome string) {
	if m == nil {
		return
	}
	m.VerifyAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockRestored() {
	if m == nil {
		return
	}
	m.StockRestores.Inc()
}
