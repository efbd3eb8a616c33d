package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newOTelProviders(t testing.TB, cfg *OTelConfig) *OTelProviders {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })
	return providers
}

func TestInitializeOTel_Defaults(t *testing.T) {
	providers := newOTelProviders(t, nil)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_ExporterSelection(t *testing.T) {
	tests := []struct {
		name       string
		config     *OTelConfig
		wantTracer bool
		wantMeter  bool
	}{
		{
			name: "both enabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "prometheus",
				EnableTracing:  true,
				EnableMetrics:  true,
				SampleRatio:    1.0,
			},
			wantTracer: true,
			wantMeter:  true,
		},
		{
			name: "tracing disabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "prometheus",
				EnableTracing:  false,
				EnableMetrics:  true,
			},
			wantTracer: false,
			wantMeter:  true,
		},
		{
			name: "metrics disabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "none",
				EnableTracing:  true,
				EnableMetrics:  false,
				SampleRatio:    1.0,
			},
			wantTracer: true,
			wantMeter:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := newOTelProviders(t, tt.config)

			if tt.wantTracer {
				assert.NotNil(t, providers.TracerProvider)
				assert.NotNil(t, providers.Tracer)
			} else {
				assert.Nil(t, providers.TracerProvider)
			}
			if tt.wantMeter {
				assert.NotNil(t, providers.MeterProvider)
				assert.NotNil(t, providers.Meter)
			} else {
				assert.Nil(t, providers.MeterProvider)
			}

			// Shutdown must cope with whichever providers exist.
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestTraceIDFromContext(t *testing.T) {
	newOTelProviders(t, DefaultOTelConfig())

	// No active span means no trace ID.
	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	got := TraceIDFromContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), got)

	// The extracted ID round-trips through the logging correlation key.
	ctx = WithTraceID(ctx, got)
	assert.Equal(t, got, GetTraceID(ctx))
}

func TestCreatePipelineMetrics_AllInstrumentsRegistered(t *testing.T) {
	providers := newOTelProviders(t, DefaultOTelConfig())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	// Every field is an instrument; none may be left nil.
	v := reflect.ValueOf(*metrics)
	for i := 0; i < v.NumField(); i++ {
		assert.False(t, v.Field(i).IsNil(), "instrument %s is nil", v.Type().Field(i).Name)
	}
}

func TestRecordHelpers(t *testing.T) {
	providers := newOTelProviders(t, DefaultOTelConfig())
	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Nil metrics must be a no-op, not a panic.
	RecordRunMetrics(ctx, nil, "run-1", time.Second, true, nil)
	RecordStageMetrics(ctx, nil, "run-1", "normalize", time.Second, true)
	RecordActiveRunChange(ctx, nil, 1)

	RecordRunMetrics(ctx, metrics, "run-1", 2*time.Second, true, nil)
	RecordRunMetrics(ctx, metrics, "run-2", time.Second, false, assert.AnError)
	RecordStageMetrics(ctx, metrics, "run-1", "reconcile", 50*time.Millisecond, true)
	RecordStageMetrics(ctx, metrics, "run-1", "dedup", 10*time.Millisecond, false)
	RecordActiveRunChange(ctx, metrics, 1)
	RecordActiveRunChange(ctx, metrics, -1)
}

func TestSpanHelpers(t *testing.T) {
	newOTelProviders(t, DefaultOTelConfig())

	// Without a recording span every helper is a silent no-op.
	bare := context.Background()
	SetSpanAttributes(bare, map[string]interface{}{"k": "v"})
	AddSpanEvent(bare, "noop", nil)
	RecordError(bare, assert.AnError)

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	SetSpanAttributes(ctx, map[string]interface{}{
		"string_attr": "test_value",
		"int_attr":    42,
		"int64_attr":  int64(7),
		"float_attr":  3.14,
		"bool_attr":   true,
		"other_attr":  time.Second, // stringified, not dropped
	})
	AddSpanEvent(ctx, "files.discovered", map[string]interface{}{
		"count": 12,
	})
	RecordError(ctx, assert.AnError)

	assert.True(t, span.IsRecording())
}

func TestPrometheusEndpoint_ServesRecordedCounters(t *testing.T) {
	providers := newOTelProviders(t, DefaultOTelConfig())
	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	RecordRunMetrics(context.Background(), metrics, "run-1", time.Second, true, nil)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "pipeline_runs_total")
}

func BenchmarkRecordStageMetrics(b *testing.B) {
	providers := newOTelProviders(b, DefaultOTelConfig())
	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(b, err)

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		RecordStageMetrics(ctx, metrics, "run-1", "normalize", time.Millisecond, true)
	}
}
