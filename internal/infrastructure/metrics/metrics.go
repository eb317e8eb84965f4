package metrics

import (
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MarketMetrics holds the lifecycle counters. A nil *MarketMetrics records nothing.
type MarketMetrics struct {
	// operations by outcome kind ("ok" or an error kind)
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	TransitionsTotal *prometheus.CounterVec
	AuditEventsTotal *prometheus.CounterVec

	AnchorFailuresTotal  prometheus.Counter
	PublishFailuresTotal prometheus.Counter

	RevocationAttemptsTotal *prometheus.CounterVec
	RevocationJobs          *prometheus.GaugeVec

	SweepItemsTotal *prometheus.CounterVec
}

func NewMarketMetrics(reg prometheus.Registerer) *MarketMetrics {
	factory := promauto.With(reg)
	return &MarketMetrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_operations_total",
				Help: "Lifecycle operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "market_operation_duration_seconds",
				Help:    "Lifecycle operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_transitions_total",
				Help: "Committed status transitions by entity and target status",
			},
			[]string{"entity", "status"},
		),
		AuditEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_audit_events_total",
				Help: "Audit events appended by kind",
			},
			[]string{"kind"},
		),
		AnchorFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "market_anchor_failures_total",
				Help: "Anchor submissions that failed or timed out",
			},
		),
		PublishFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "market_audit_publish_failures_total",
				Help: "Audit events that could not be published to the bus",
			},
		),
		RevocationAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_revocation_attempts_total",
				Help: "Revocation handler calls by outcome",
			},
			[]string{"outcome"},
		),
		RevocationJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "market_revocation_jobs",
				Help: "Revocation jobs by status at the last retry pass",
			},
			[]string{"status"},
		),
		SweepItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_sweep_items_total",
				Help: "Items handled by background sweeps",
			},
			[]string{"sweep", "result"},
		),
	}
}

func (m *MarketMetrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *MarketMetrics) Transition(entity domain.EntityKind, status string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(entity), status).Inc()
}

func (m *MarketMetrics) AuditAppended(kind domain.AuditKind) {
	if m == nil {
		return
	}
	m.AuditEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *MarketMetrics) AnchorFailed() {
	if m == nil {
		return
	}
	m.AnchorFailuresTotal.Inc()
}

func (m *MarketMetrics) PublishFailed() {
	if m == nil {
		return
	}
	m.PublishFailuresTotal.Inc()
}

func (m *MarketMetrics) RevocationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.RevocationAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *MarketMetrics) SetRevocationJobs(pending, failed int) {
	if m == nil {
		return
	}
	m.RevocationJobs.WithLabelValues(string(domain.RevocationPending)).Set(float64(pending))
	m.RevocationJobs.WithLabelValues(string(domain.RevocationFailed)).Set(float64(failed))
}

func (m *MarketMetrics) SweepItems(sweep, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SweepItemsTotal.WithLabelValues(sweep, result).Add(float64(n))
}
