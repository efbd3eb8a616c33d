package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "nyc-sales-pipeline"
	ServiceVersion = "v0.3.0"
	MeterName      = "nycsales"
)

// OTelConfig selects exporters and sampling for traces and metrics.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
	PrometheusPort string
}

// OTelProviders bundles everything the rest of the process needs from
// the telemetry setup: the SDK providers for shutdown, a tracer and
// meter for instrumentation, and the scrape handler for the router.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig is the development setup: pretty-printed spans on
// stdout, full sampling, Prometheus exposition.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
		PrometheusPort: "9090",
	}
}

// InitializeOTel stands up tracing and metrics per cfg and installs the
// global providers and W3C propagators. Nil cfg means defaults.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()
	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	providers := &OTelProviders{Logger: logger}
	if cfg.EnableTracing {
		if err := providers.setUpTracing(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := providers.setUpMetrics(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))
	return providers, nil
}

func (p *OTelProviders) setUpTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	if cfg.TraceExporter == "none" {
		return nil
	}
	if cfg.TraceExporter != "stdout" {
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	p.TracerProvider = tp
	p.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	p.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

func (p *OTelProviders) setUpMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	if cfg.MetricExporter == "none" {
		return nil
	}
	if cfg.MetricExporter != "prometheus" {
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	// The exporter registers with the default Prometheus registry, which
	// promhttp.Handler serves.
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.PrometheusHTTP = promhttp.Handler()

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.MeterProvider = mp
	p.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetMeterProvider(mp)

	p.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops both providers. Safe on partially
// initialized sets; errors from the two shutdowns are joined.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// PipelineMetrics is every instrument the pipeline and its HTTP front
// record. One instance is shared across the process.
type PipelineMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	RunExecutionsTotal metric.Int64Counter
	RunDuration        metric.Float64Histogram
	ActiveRuns         metric.Int64UpDownCounter
	RunErrors          metric.Int64Counter

	StageExecutionsTotal metric.Int64Counter
	StageDuration        metric.Float64Histogram

	FilesProcessed    metric.Int64Counter
	FilesSkipped      metric.Int64Counter
	RowsProcessed     metric.Int64Counter
	RowsDropped       metric.Int64Counter
	DuplicatesRemoved metric.Int64Counter

	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// CreatePipelineMetrics registers the application instruments on meter.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	// Metrics may be disabled by configuration; the noop meter keeps the
	// instruments callable so recording sites need no branches.
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		keep(err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc), metric.WithUnit("s"))
		keep(err)
		return h
	}
	upDown := func(name, desc string) metric.Int64UpDownCounter {
		u, err := meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		keep(err)
		return u
	}

	pm := &PipelineMetrics{
		HTTPRequestsTotal:   counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: seconds("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  upDown("http_active_requests", "Number of active HTTP requests"),

		RunExecutionsTotal: counter("pipeline_runs_total", "Total number of pipeline runs"),
		RunDuration:        seconds("pipeline_run_duration_seconds", "Pipeline run duration in seconds"),
		ActiveRuns:         upDown("pipeline_active_runs", "Number of active pipeline runs"),
		RunErrors:          counter("pipeline_run_errors_total", "Total number of pipeline run errors"),

		StageExecutionsTotal: counter("pipeline_stage_executions_total", "Total number of pipeline stage executions"),
		StageDuration:        seconds("pipeline_stage_duration_seconds", "Pipeline stage execution duration in seconds"),

		FilesProcessed:    counter("pipeline_files_processed_total", "Total number of source spreadsheets processed"),
		FilesSkipped:      counter("pipeline_files_skipped_total", "Total number of source spreadsheets skipped"),
		RowsProcessed:     counter("pipeline_rows_processed_total", "Total number of source rows read"),
		RowsDropped:       counter("pipeline_rows_dropped_total", "Total number of rows dropped during normalization"),
		DuplicatesRemoved: counter("pipeline_duplicates_removed_total", "Total number of duplicate records removed"),

		SystemErrors: counter("system_errors_total", "Total number of system errors"),
	}

	uptime, err := meter.Float64UpDownCounter("system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"), metric.WithUnit("s"))
	keep(err)
	pm.SystemUptime = uptime

	if firstErr != nil {
		return nil, firstErr
	}
	return pm, nil
}

// instanceID distinguishes concurrent deployments of the same service.
func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the active span's trace ID, or "" when no
// span is recording. Log lines carry it as trace_id.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// spanAttrs converts a loose attribute map to typed OTel attributes.
// Unknown types are stringified rather than dropped.
func spanAttrs(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

// AddSpanEvent marks a landmark on the current span. No-op when nothing
// is recording.
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(spanAttrs(attributes)...))
}

// RecordError attaches err to the current span and flips its status.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes applies a loose attribute map to the current span.
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(spanAttrs(attributes)...)
}

// RecordRunMetrics accounts for one finished pipeline run. Duration is
// labeled with the outcome so success and failure latencies separate.
func RecordRunMetrics(ctx context.Context, metrics *PipelineMetrics, runID string, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("run.id", runID)}
	metrics.RunExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.RunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))

	if err != nil {
		metrics.RunErrors.Add(ctx, 1,
			metric.WithAttributes(append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
	}

	AddSpanEvent(ctx, "run.metrics_recorded", map[string]interface{}{
		"run.id":           runID,
		"success":          success,
		"duration_seconds": duration.Seconds(),
	})
}

// RecordStageMetrics accounts for one stage execution within a run.
func RecordStageMetrics(ctx context.Context, metrics *PipelineMetrics, runID, stage string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("stage", stage),
	}
	metrics.StageExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.StageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))
}

// RecordActiveRunChange moves the active-run gauge by delta.
func RecordActiveRunChange(ctx context.Context, metrics *PipelineMetrics, delta int64) {
	if metrics == nil {
		return
	}
	metrics.ActiveRuns.Add(ctx, delta)
}
