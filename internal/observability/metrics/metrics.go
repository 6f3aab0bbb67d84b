package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reportRequests  metric.Int64Counter
	reportDuration  metric.Float64Histogram
	payrollBatches  metric.Int64Counter
	payrollLines    metric.Int64Counter
	paymentsCreated metric.Int64Counter
	rateLimited     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "workbook"
	}
	meter := provider.Meter(name)

	reportRequests, err := meter.Int64Counter("workbook_report_requests_total")
	if err != nil {
		return nil, err
	}
	reportDuration, err := meter.Float64Histogram("workbook_report_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	payrollBatches, err := meter.Int64Counter("workbook_payroll_batches_total")
	if err != nil {
		return nil, err
	}
	payrollLines, err := meter.Int64Counter("workbook_payroll_lines_total")
	if err != nil {
		return nil, err
	}
	paymentsCreated, err := meter.Int64Counter("workbook_payments_created_total")
	if err != nil {
		return nil, err
	}

	rateLimited, err := meter.Int64Counter("workbook_rate_limited_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		rateLimited:     rateLimited,
		reportRequests:  reportRequests,
		reportDuration:  reportDuration,
		payrollBatches:  payrollBatches,
		payrollLines:    payrollLines,
		paymentsCreated: paymentsCreated,
	}, nil
}

// RecordReport records one assembled report and its latency.
func (m *Metrics) RecordReport(ctx context.Context, report, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("report", strings.TrimSpace(report)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.reportRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.reportDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPayrollBatch counts batch lifecycle events.
func (m *Metrics) RecordPayrollBatch(ctx context.Context, event, outcome string, lines int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(event)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.payrollBatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	if lines > 0 {
		m.payrollLines.Add(ctx, int64(lines), metric.WithAttributes(attrs...))
	}
}

// RecordPaymentCreated increments payment counts by method.
func (m *Metrics) RecordPaymentCreated(ctx context.Context, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.TrimSpace(method)))
	m.paymentsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimited counts report requests rejected by the tenant limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, report, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("report", strings.TrimSpace(report)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"tenant_id":   {},
	"report":      {},
	"outcome":     {},
	"status_code": {},
	"method":      {},
	"event_type":  {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
