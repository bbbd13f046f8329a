package hooks

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// MetricsHook implements Prometheus metrics collection
type MetricsHook struct {
	statementDuration *prometheus.HistogramVec
	statementTotal    *prometheus.CounterVec
	statementErrors   *prometheus.CounterVec
	batchFlushes      *prometheus.CounterVec
}

var (
	_ Hook          = (*MetricsHook)(nil)
	_ bun.QueryHook = (*MetricsHook)(nil)
)

// NewMetricsHook creates a new metrics hook and registers collectors
func NewMetricsHook(registry prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbutils_statement_duration_seconds",
				Help:    "Duration of database statements in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		statementTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbutils_statements_total",
				Help: "Total number of database statements",
			},
			[]string{"operation"},
		),
		statementErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbutils_statement_errors_total",
				Help: "Total number of database statement errors",
			},
			[]string{"operation"},
		),
		batchFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbutils_batch_flushes_total",
				Help: "Total number of batch flushes submitted",
			},
			[]string{"operation"},
		),
	}

	collectors := []prometheus.Collector{h.statementDuration, h.statementTotal, h.statementErrors, h.batchFlushes}
	for i, c := range collectors {
		if err := registry.Register(c); err != nil {
			// Reuse collectors registered by an earlier hook.
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	h.statementDuration = collectors[0].(*prometheus.HistogramVec)
	h.statementTotal = collectors[1].(*prometheus.CounterVec)
	h.statementErrors = collectors[2].(*prometheus.CounterVec)
	h.batchFlushes = collectors[3].(*prometheus.CounterVec)

	return h, nil
}

// BeforeStatement is called before a dbutils statement runs
func (h *MetricsHook) BeforeStatement(ctx context.Context, event *Event) context.Context {
	return ctx
}

// AfterStatement is called after a dbutils statement ran
func (h *MetricsHook) AfterStatement(ctx context.Context, event *Event) {
	h.observe(event)
}

// BeforeQuery is called before a bun query is executed
func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery is called after a bun query is executed
func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.observe(fromBun(event))
}

func (h *MetricsHook) observe(event *Event) {
	duration := time.Since(event.StartTime).Seconds()
	op := OperationType(event.Query)

	h.statementDuration.WithLabelValues(op).Observe(duration)
	h.statementTotal.WithLabelValues(op).Inc()

	if event.Flushes > 0 {
		h.batchFlushes.WithLabelValues(op).Add(float64(event.Flushes))
	}
	if event.Err != nil {
		h.statementErrors.WithLabelValues(op).Inc()
	}
}
