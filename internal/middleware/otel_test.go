package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nycsales/internal/infrastructure"
	"nycsales/internal/shared/testutil"
)

func newInstrumentedRouter(t *testing.T) (*chi.Mux, *infrastructure.OTelProviders) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	providers, err := infrastructure.InitializeOTel(nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	m, err := NewOTelMiddleware(providers)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(m.Handler)
	return router, providers
}

func TestOTelMiddleware_TraceIDReachesHandler(t *testing.T) {
	router, _ := newInstrumentedRouter(t)

	var traceID string
	router.Get("/api/summaries", func(w http.ResponseWriter, r *http.Request) {
		traceID = infrastructure.GetTraceID(r.Context())
		w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/summaries", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, traceID, "handler should see the span's trace ID")
}

func TestOTelMiddleware_HonorsInboundTraceContext(t *testing.T) {
	router, _ := newInstrumentedRouter(t)

	const upstreamTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	router.Get("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		seen = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	req.Header.Set("traceparent", "00-"+upstreamTraceID+"-00f067aa0ba902b7-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, upstreamTraceID, seen,
		"the server span should continue the caller's trace")
}

func TestOTelMiddleware_RecordsRequestMetrics(t *testing.T) {
	router, providers := newInstrumentedRouter(t)
	require.NotNil(t, providers.PrometheusHTTP)

	router.Get("/api/summaries/{year}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, year := range []string{"2019", "2020", "2021"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/summaries/"+year, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	scrape := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(scrape, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(scrape.Result().Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "http_requests_total")
	// The route label carries chi's pattern, not the three raw paths.
	assert.Contains(t, string(body), "/api/summaries/{year}")
}

func TestNewOTelMiddleware_TracingDisabled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	cfg := infrastructure.DefaultOTelConfig()
	cfg.EnableTracing = false
	cfg.TraceExporter = "none"

	providers, err := infrastructure.InitializeOTel(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	m, err := NewOTelMiddleware(providers)
	require.NoError(t, err)

	// Requests still flow through the noop tracer.
	router := chi.NewRouter()
	router.Use(m.Handler)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:   "no proxy headers",
			remote: "203.0.113.7:4411",
			want:   "203.0.113.7:4411",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "198.51.100.2"},
			remote:  "10.0.0.1:9999",
			want:    "198.51.100.2",
		},
		{
			name:    "single forwarded hop",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9"},
			remote:  "10.0.0.1:9999",
			want:    "198.51.100.9",
		},
		{
			name:    "forwarded chain keeps first hop",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.2, 10.0.0.3"},
			remote:  "10.0.0.1:9999",
			want:    "198.51.100.9",
		},
		{
			name: "forwarded-for beats real-ip",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.9",
				"X-Real-IP":       "192.0.2.1",
			},
			remote: "10.0.0.1:9999",
			want:   "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealIP(req))
		})
	}
}
