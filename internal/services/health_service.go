package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"nycsales/internal/config"
	"nycsales/pkg/contracts"
)

// HealthService answers the liveness and readiness probes. Readiness is
// data-driven: the API is ready once a pipeline run has left readable
// tables behind.
type HealthService struct {
	version   string
	paths     *config.Paths
	data      *DataService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the body of every probe response.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is one named check inside a readiness response.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service over the pipeline's paths. The
// data service is used to probe whether the output tables are readable.
func NewHealthService(version string, paths *config.Paths, data *DataService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Health probes wired",
		slog.String("version", version),
		slog.String("output_dir", paths.OutputDir))

	return &HealthService{
		version:   version,
		paths:     paths,
		data:      data,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck answers the basic probe. It never inspects data; a running
// process is healthy.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the API can serve data: the input
// directory exists and the last pipeline run left readable tables behind.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	checks := map[string]ServiceHealth{
		"input":  hs.checkInputDir(),
		"tables": hs.checkTables(ctx),
		"report": hs.checkRunReport(ctx),
	}
	for name, check := range checks {
		status.Services[name] = check
		if check.Status != "ready" {
			status.Status = "not_ready"
		}
	}

	return status
}

// LivenessCheck reports that the process is alive, with enough runtime
// detail to spot a leak from the probe history alone.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information, including the build stamps set via
// ldflags and the exported data format revision.
func (hs *HealthService) Version() map[string]interface{} {
	build := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"build_time":   build.BuildTime,
		"git_commit":   build.GitCommit,
		"data_format":  build.DataFormat,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

func (hs *HealthService) checkInputDir() ServiceHealth {
	if !config.FileExists(hs.paths.InputDir) {
		return ServiceHealth{Status: "not_ready", Message: "input directory missing"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkTables(ctx context.Context) ServiceHealth {
	if _, err := hs.data.GetMetrics(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	if _, err := hs.data.SummaryYears(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkRunReport(ctx context.Context) ServiceHealth {
	report, err := hs.data.GetRunReport(ctx)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	if !report.Succeeded {
		return ServiceHealth{Status: "not_ready", Message: "last pipeline run failed"}
	}
	return ServiceHealth{Status: "ready"}
}
