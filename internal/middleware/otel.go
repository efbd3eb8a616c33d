package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"nycsales/internal/infrastructure"
)

// OTelMiddleware opens a server span per request and feeds the HTTP
// instruments. It owns the telemetry view of a request; StructuredLogger
// owns the access log.
type OTelMiddleware struct {
	tracer          trace.Tracer
	pipelineMetrics *infrastructure.PipelineMetrics
}

// NewOTelMiddleware wires the middleware to the process-wide providers.
// A provider set with tracing disabled still yields a working middleware.
func NewOTelMiddleware(providers *infrastructure.OTelProviders) (*OTelMiddleware, error) {
	pipelineMetrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	tracer := providers.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}

	return &OTelMiddleware{
		tracer:          tracer,
		pipelineMetrics: pipelineMetrics,
	}, nil
}

// Handler instruments the request. Inbound W3C trace context is honored,
// the span's trace ID becomes the correlation ID for everything downstream,
// and duration and status land in the HTTP instruments on the way out.
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		// chi has not dispatched yet, so the span opens under the raw
		// path and finish renames it to the bounded route pattern.
		ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLSchemeKey.String(r.URL.Scheme),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				semconv.ClientAddressKey.String(GetRealIP(r)),
			),
		)
		defer span.End()

		ctx = infrastructure.WithTraceID(ctx, span.SpanContext().TraceID().String())
		r = r.WithContext(ctx)

		m.pipelineMetrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.pipelineMetrics.HTTPActiveRequests.Add(ctx, -1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		m.finish(r, span, ww.Status(), int64(ww.BytesWritten()), time.Since(start))
	})
}

// finish records the request's outcome on both the instruments and the span,
// now that the matched route is known.
func (m *OTelMiddleware) finish(r *http.Request, span trace.Span, status int, bytes int64, duration time.Duration) {
	ctx := r.Context()
	route := routePattern(r)

	attrs := metric.WithAttributes(
		attribute.String("method", r.Method),
		attribute.String("route", route),
		attribute.Int("status_code", status),
	)
	m.pipelineMetrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.pipelineMetrics.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetName(r.Method + " " + route)
	span.SetAttributes(
		semconv.HTTPRouteKey.String(route),
		semconv.HTTPResponseStatusCodeKey.Int(status),
		semconv.HTTPResponseBodySizeKey.Int64(bytes),
		attribute.Float64("http.request.duration", duration.Seconds()),
	)
	if status >= 400 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// routePattern prefers chi's matched pattern over the raw path, so metric
// cardinality stays bounded under parameterized routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// GetRealIP returns the client address, preferring proxy headers. Only the
// first hop of X-Forwarded-For counts; the rest is proxy chain.
func GetRealIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
