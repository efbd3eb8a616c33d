package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// SystemMetrics publishes Go runtime and process health as OTel
// instruments, alongside the pipeline's own counters.
type SystemMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcCount         metric.Int64Counter
	gcPause         metric.Float64Histogram
	cpuCount        metric.Int64Gauge
	processUptime   metric.Float64Gauge

	// Collect runs on the collector goroutine and on demand, so the
	// cumulative GC count needs atomic access.
	lastGCCount atomic.Uint32
}

// NewSystemMetrics registers the runtime instruments on meter.
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	int64Gauge := func(name, desc string, opts ...metric.Int64GaugeOption) metric.Int64Gauge {
		g, err := meter.Int64Gauge(name, append(opts, metric.WithDescription(desc))...)
		keep(err)
		return g
	}

	sm := &SystemMetrics{
		goRoutines: int64Gauge("system_goroutines",
			"Number of active goroutines"),
		memoryUsage: int64Gauge("system_memory_usage_bytes",
			"Memory usage in bytes", metric.WithUnit("By")),
		memoryAllocated: int64Gauge("system_memory_allocated_bytes",
			"Memory allocated by Go runtime in bytes", metric.WithUnit("By")),
		memorySystem: int64Gauge("system_memory_system_bytes",
			"Memory obtained from the OS in bytes", metric.WithUnit("By")),
		cpuCount: int64Gauge("system_cpu_count",
			"Number of logical CPUs"),
	}

	gcCount, err := meter.Int64Counter("system_gc_count_total",
		metric.WithDescription("Total number of garbage collections"))
	keep(err)
	sm.gcCount = gcCount

	gcPause, err := meter.Float64Histogram("system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"))
	keep(err)
	sm.gcPause = gcPause

	processUptime, err := meter.Float64Gauge("system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"))
	keep(err)
	sm.processUptime = processUptime

	if firstErr != nil {
		return nil, firstErr
	}
	return sm, nil
}

// SystemStats is one sampled snapshot of the runtime.
type SystemStats struct {
	GoRoutines      int64
	MemoryUsage     int64
	MemoryAllocated int64
	MemorySystem    int64
	GCCount         uint32
	LastGCPause     time.Duration
	CPUCount        int
	ProcessUptime   time.Duration
	Timestamp       time.Time
}

// Collect samples the runtime, records every instrument and returns the
// snapshot for callers that want to log it.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := &SystemStats{
		GoRoutines:      int64(runtime.NumGoroutine()),
		MemoryUsage:     int64(ms.Alloc),
		MemoryAllocated: int64(ms.TotalAlloc),
		MemorySystem:    int64(ms.Sys),
		GCCount:         ms.NumGC,
		LastGCPause:     time.Duration(ms.PauseNs[(ms.NumGC+255)%256]),
		CPUCount:        runtime.NumCPU(),
		ProcessUptime:   time.Since(startTime),
		Timestamp:       time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.memoryAllocated.Record(ctx, stats.MemoryAllocated)
	sm.memorySystem.Record(ctx, stats.MemorySystem)
	sm.cpuCount.Record(ctx, int64(stats.CPUCount))
	sm.processUptime.Record(ctx, stats.ProcessUptime.Seconds())

	// NumGC is cumulative, the counter wants the delta since last collect.
	if last := sm.lastGCCount.Swap(stats.GCCount); stats.GCCount > last {
		sm.gcCount.Add(ctx, int64(stats.GCCount-last))
	}
	if stats.LastGCPause > 0 {
		sm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return stats
}

// FormatStats shapes a snapshot for a structured log line.
func (stats *SystemStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"runtime": map[string]interface{}{
			"goroutines":       stats.GoRoutines,
			"memory_usage_mb":  stats.MemoryUsage / 1024 / 1024,
			"memory_alloc_mb":  stats.MemoryAllocated / 1024 / 1024,
			"memory_system_mb": stats.MemorySystem / 1024 / 1024,
			"gc_count":         stats.GCCount,
			"last_gc_pause_ms": stats.LastGCPause.Milliseconds(),
		},
		"system": map[string]interface{}{
			"cpu_count":      stats.CPUCount,
			"uptime_seconds": stats.ProcessUptime.Seconds(),
		},
		"timestamp": stats.Timestamp.Format(time.RFC3339),
	}
}

// SystemMetricsCollector resamples the runtime on a fixed interval for
// the lifetime of the server process.
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector wires a SystemMetrics set to a sampling
// interval. Uptime is measured from this call.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start samples once immediately, then on every tick until Stop is
// called or ctx ends. Run it on its own goroutine.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.metrics.Collect(ctx, smc.startTime)
	for {
		select {
		case <-ticker.C:
			smc.metrics.Collect(ctx, smc.startTime)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sampling loop. Call at most once.
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}

// GetCurrentStats samples immediately, outside the ticker cadence. The
// shutdown path uses it for a final reading.
func (smc *SystemMetricsCollector) GetCurrentStats(ctx context.Context) *SystemStats {
	return smc.metrics.Collect(ctx, smc.startTime)
}
