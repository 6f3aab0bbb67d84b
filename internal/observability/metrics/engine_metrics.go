package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonNotFound             = "not_found"
	ReasonUnknown              = "unknown"
)

// EngineMetrics exposes prometheus collectors scraped from /metrics.
type EngineMetrics struct {
	reportDuration     *prometheus.HistogramVec
	reportErrors       *prometheus.CounterVec
	batchTransitions   *prometheus.CounterVec
	batchErrors        *prometheus.CounterVec
	consistencyFailure *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the singleton engine metrics registry using config labels.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "workbook"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "workbook_report_assembly_seconds",
		Help:        "Report assembly latency by report name.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"report"})
	reportErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workbook_report_errors_total",
		Help:        "Report failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"report", "reason"})
	batchTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workbook_payroll_batch_transition_total",
		Help:        "Payroll batch lifecycle transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	batchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workbook_payroll_batch_errors_total",
		Help:        "Payroll batch processing failures by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	consistencyFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workbook_rollup_inconsistency_total",
		Help:        "Rollups whose dimensional totals disagreed.",
		ConstLabels: constLabels,
	}, []string{"report"})

	registerer.MustRegister(
		reportDuration,
		reportErrors,
		batchTransitions,
		batchErrors,
		consistencyFailure,
	)

	return &EngineMetrics{
		reportDuration:     reportDuration,
		reportErrors:       reportErrors,
		batchTransitions:   batchTransitions,
		batchErrors:        batchErrors,
		consistencyFailure: consistencyFailure,
	}
}

func (m *EngineMetrics) ObserveReport(report string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report).Observe(duration.Seconds())
}

func (m *EngineMetrics) IncReportError(report string, err error) {
	if m == nil || err == nil {
		return
	}
	m.reportErrors.WithLabelValues(report, ClassifyReason(err)).Inc()
}

func (m *EngineMetrics) IncInconsistentRollup(report string) {
	if m == nil {
		return
	}
	m.consistencyFailure.WithLabelValues(report).Inc()
}

func (m *EngineMetrics) IncBatchTransition(from, to string) {
	if m == nil {
		return
	}
	m.batchTransitions.WithLabelValues(from, to).Inc()
}

func (m *EngineMetrics) IncBatchError(err error) {
	if m == nil || err == nil {
		return
	}
	m.batchErrors.WithLabelValues(ClassifyReason(err)).Inc()
}

// ClassifyReason maps an error to a bounded label value.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ReasonNotFound
	}
	if hasPGCode(err, "55P03") {
		return ReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReasonUniqueViolation
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
