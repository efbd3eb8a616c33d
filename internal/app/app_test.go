package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nycsales/internal/config"
	"nycsales/internal/exporter"
	"nycsales/internal/infrastructure"
	"nycsales/internal/pipeline"
	"nycsales/internal/services"
	"nycsales/internal/shared/testutil"
	"nycsales/pkg/contracts/domain"
)

// newTestApplication assembles an Application over a temp directory the way
// NewApplication would, minus config.Load so tests stay hermetic.
func newTestApplication(t *testing.T) *Application {
	t.Helper()

	cfg := config.Default()
	cfg.Server.RateLimit.Enabled = false
	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	logger, _ := testutil.NewTestLogger(t)

	providers, err := infrastructure.InitializeOTel(nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(ctx)
	})

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
	}
	app.initializeServices()
	app.setupRouter()
	app.createServer()
	return app
}

// writePipelineOutputs populates the output directory with one completed
// run: a 2020 summary table, the metrics matrix and a run report.
func writePipelineOutputs(t *testing.T, paths *config.Paths) {
	t.Helper()

	yoy := 4.2
	summaries := []domain.GroupSummary{
		{
			GroupKey: domain.GroupKey{
				BoroughName:      "BROOKLYN",
				Neighborhood:     "PARK SLOPE",
				BuildingCategory: "01 ONE FAMILY DWELLINGS",
				Year:             2020,
			},
			NumSales:    3,
			AvgPrice:    1200000,
			MedianPrice: 1150000,
			MinPrice:    900000,
			MaxPrice:    1550000,
			YoYPct:      &yoy,
		},
	}
	_, err := exporter.NewSummariesExporter(paths).Export(summaries)
	require.NoError(t, err)

	p25 := 845000.0
	breadth := 1.0
	matrix := domain.MetricsMatrix{
		{
			BoroughName:      "BROOKLYN",
			Year:             2020,
			NumSales:         3,
			MedianPrice:      1150000,
			AffordabilityP25: &p25,
			Breadth:          &breadth,
			NumNeighborhoods: 1,
		},
	}
	require.NoError(t, exporter.NewMetricsExporter(paths).Export(matrix))

	report := &pipeline.RunReport{
		RunID:           "run-test",
		StartedAt:       time.Now().Add(-time.Minute),
		CompletedAt:     time.Now(),
		Succeeded:       true,
		FilesDiscovered: 1,
		FilesProcessed:  []string{"rollingsales_brooklyn.xlsx"},
		RowsIn:          5,
		RecordsOut:      3,
		GroupsOut:       1,
		MatrixRows:      1,
	}
	require.NoError(t, report.WriteJSON(paths.RunReportJSON))
}

func TestNewTestApplication_Wiring(t *testing.T) {
	app := newTestApplication(t)

	require.NotNil(t, app.Router)
	require.NotNil(t, app.Server)
	require.NotNil(t, app.DataService)
	require.NotNil(t, app.HealthService)
	assert.Equal(t, fmt.Sprintf(":%d", app.Config.Server.Port), app.Server.Addr)
	assert.Equal(t, app.Config.Server.ReadTimeout, app.Server.ReadTimeout)
	assert.Equal(t, app.Config.Server.MaxHeaderBytes, app.Server.MaxHeaderBytes)
}

func TestApplication_HealthEndpoints(t *testing.T) {
	app := newTestApplication(t)

	t.Run("healthz is ok before any run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var status services.HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "ok", status.Status)
		assert.Equal(t, config.AppVersion, status.Version)
	})

	t.Run("liveness reports runtime info", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/live", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"alive"`)
	})

	t.Run("readiness is 503 until outputs exist", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"not_ready"`)
	})

	t.Run("readiness flips once a run completed", func(t *testing.T) {
		writePipelineOutputs(t, app.Paths)

		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ready"`)
	})
}

func TestApplication_APIRoutes(t *testing.T) {
	app := newTestApplication(t)
	writePipelineOutputs(t, app.Paths)

	t.Run("version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), config.AppVersion)
	})

	t.Run("summaries filtered by year and borough", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries?year=2020&borough=brooklyn", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var envelope struct {
			Status string                `json:"status"`
			Data   []domain.GroupSummary `json:"data"`
			Count  int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, "success", envelope.Status)
		require.Equal(t, 1, envelope.Count)
		assert.Equal(t, "PARK SLOPE", envelope.Data[0].Neighborhood)
		assert.Equal(t, 3, envelope.Data[0].NumSales)
	})

	t.Run("summaries rejects a bad borough at the edge", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries?borough=LONDON", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
		assert.Contains(t, rec.Body.String(), "New York City borough")
	})

	t.Run("metrics matrix", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"market_breadth"`)
		assert.Contains(t, rec.Body.String(), `"BROOKLYN"`)
	})

	t.Run("run report", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"run-test"`)
	})

	t.Run("trailing slashes are stripped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestApplication_ProblemResponses(t *testing.T) {
	app := newTestApplication(t)

	t.Run("unknown route is problem json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	})

	t.Run("wrong method is problem json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	})

	t.Run("summaries without tables is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	})
}

func TestApplication_MiddlewareSurface(t *testing.T) {
	app := newTestApplication(t)
	writePipelineOutputs(t, app.Paths)

	t.Run("request id and security headers are set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	})

	t.Run("same host origin is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
		origin := fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)
		req.Header.Set("Origin", origin)

		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)

		assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin is not acknowledged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("prometheus endpoint is mounted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "# HELP")
	})
}

func TestApplication_RateLimiterWired(t *testing.T) {
	app := newTestApplication(t)
	app.Config.Server.RateLimit.Enabled = true
	app.Config.Server.RateLimit.RPS = 1
	app.Config.Server.RateLimit.Burst = 1
	app.setupRouter()

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestApplication_StopShutsDownCleanly(t *testing.T) {
	app := newTestApplication(t)

	// Bind to an ephemeral port so parallel test runs do not collide.
	app.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	require.NoError(t, app.Stop(ctx))
}

func TestResolvePaths(t *testing.T) {
	t.Run("explicit base dir wins", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.Default()
		cfg.Paths.BaseDir = dir

		paths, err := resolvePaths(cfg)
		require.NoError(t, err)
		assert.Equal(t, dir, paths.BaseDir)
	})

	t.Run("defaults to executable layout", func(t *testing.T) {
		paths, err := resolvePaths(config.Default())
		require.NoError(t, err)
		assert.NotEmpty(t, paths.BaseDir)
	})
}
