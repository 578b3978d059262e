// Package metrics holds the Prometheus collectors of the receivables engine.
package metrics

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "receivables_"

	resultSuccess = "success"
	resultError   = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	opsTotal      *prometheus.CounterVec
	opsLatency    *prometheus.HistogramVec
	partialApply  *prometheus.CounterVec
	auditFailures prometheus.Counter
	rpcTotal      *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total lifecycle operations by operation and result",
			},
			[]string{"op", "result"},
		),
		opsLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Lifecycle operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		partialApply: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "partial_apply_total",
				Help: "Operations that failed after their first write",
			},
			[]string{"op"},
		),
		auditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_failures_total",
				Help: "Audit or history appends that could not be stored",
			},
		),
		rpcTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rpc_requests_total",
				Help: "Total RPC requests by procedure and code",
			},
			[]string{"procedure", "code"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rpc_latency_seconds",
				Help:    "RPC latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
	}

	for _, c := range []prometheus.Collector{m.opsTotal, m.opsLatency, m.partialApply, m.auditFailures, m.rpcTotal, m.rpcLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOp records one lifecycle operation.
func (m *Metrics) ObserveOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, result(err)).Inc()
	m.opsLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// PartialApply counts an operation left partially applied.
func (m *Metrics) PartialApply(op string) {
	if m == nil {
		return
	}
	m.partialApply.WithLabelValues(op).Inc()
}

// AuditFailure counts a dropped audit or history append.
func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// ObserveRPC records one RPC call.
func (m *Metrics) ObserveRPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcTotal.WithLabelValues(procedure, code).Inc()
	m.rpcLatency.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// RegisterDBGauges exposes row counts read from db at scrape time.
func RegisterDBGauges(reg prometheus.Registerer, db *sql.DB) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_settlements",
				Help: "Settlements in ACTIVE status",
			},
			func() float64 {
				return queryCount(db, "SELECT COUNT(*) FROM settlements WHERE status = 'ACTIVE'")
			},
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "titles_at_notary",
				Help: "Receivable titles currently under protest",
			},
			func() float64 {
				return queryCount(db, "SELECT COUNT(*) FROM receivables WHERE collection_state IN ('AT_NOTARY', 'BLOCKED_BY_SETTLEMENT_AT_NOTARY')")
			},
		),
	}
	var errs []error
	for _, g := range gauges {
		errs = append(errs, reg.Register(g))
	}
	return errors.Join(errs...)
}

func queryCount(db *sql.DB, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		slog.Warn("metrics query failed", "error", err)
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
