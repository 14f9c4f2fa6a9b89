package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Supplier call outcomes
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeTransient = "transient"
)

type Metrics struct {
	SupplierCalls   *prometheus.CounterVec
	SupplierLatency *prometheus.HistogramVec
	SearchBatches   *prometheus.CounterVec
	Bookings        *prometheus.CounterVec
	TicketAttempts  prometheus.Histogram
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SupplierCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flight",
			Name:      "supplier_calls_total",
			Help:      "Supplier API calls by supplier, operation and outcome.",
		}, []string{"supplier", "operation", "outcome"}),
		SupplierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flight",
			Name:      "supplier_call_duration_seconds",
			Help:      "Supplier API call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"supplier", "operation"}),
		SearchBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flight",
			Name:      "search_batches_total",
			Help:      "Persisted search batches by supplier and result.",
		}, []string{"supplier", "result"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flight",
			Name:      "bookings_total",
			Help:      "Booking state transitions by status.",
		}, []string{"status"}),
		TicketAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flight",
			Name:      "ticket_attempts",
			Help:      "Ticket calls needed per leg.",
			Buckets:   []float64{1, 2, 3},
		}),
	}
	reg.MustRegister(m.SupplierCalls, m.SupplierLatency, m.SearchBatches, m.Bookings, m.TicketAttempts)
	return m
}

// ObserveSupplierCall records one supplier call
func (m *Metrics) ObserveSupplierCall(supplier, operation, outcome string, started time.Time) {
	m.SupplierCalls.WithLabelValues(supplier, operation, outcome).Inc()
	m.SupplierLatency.WithLabelValues(supplier, operation).Observe(time.Since(started).Seconds())
}
