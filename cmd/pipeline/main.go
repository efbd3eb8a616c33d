package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"nycsales/internal/config"
	"nycsales/internal/infrastructure"
	"nycsales/internal/ingest"
	"nycsales/internal/pipeline"
	"nycsales/pkg/contracts"
)

func main() {
	inDir := flag.String("in", "", "input directory for sales spreadsheets (defaults to data/input relative to executable)")
	outDir := flag.String("out", "", "output directory for exported tables (defaults to data/output relative to executable)")
	configFile := flag.String("config", "", "config YAML path (defaults to config.yaml in the working directory)")
	aliasFile := flag.String("aliases", "", "alias table YAML path (defaults to aliases.yaml next to the executable)")
	workers := flag.Int("workers", 0, "concurrent file workers (defaults to the configured value)")
	reportPath := flag.String("report", "", "run report JSON path (defaults to run_report.json in the output directory)")
	withOTel := flag.Bool("trace", false, "emit OpenTelemetry spans and metrics for this run")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		build := contracts.GetVersionInfo()
		fmt.Printf("%s (%s, built %s, commit %s)\n",
			contracts.GetVersionString(), build.GoVersion, build.BuildTime, build.GitCommit)
		return
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	// An explicit -config must load; the default search may come up empty.
	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
		if err != nil {
			slog.Error("Failed to load config", "path", *configFile, "error", err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			slog.Warn("Failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
	}

	// Flag overrides win over both file and environment.
	if *inDir != "" {
		paths.InputDir = *inDir
	}
	if *outDir != "" {
		paths.SetOutputDir(*outDir)
	}
	if *aliasFile != "" {
		paths.AliasFile = *aliasFile
	}
	if *reportPath != "" {
		paths.RunReportJSON = *reportPath
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Relative log paths anchor at the executable, like every other path.
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetRelativePath(cfg.Logging.FilePath)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting sales pipeline run",
		slog.String("input_dir", paths.InputDir),
		slog.String("output_dir", paths.OutputDir),
		slog.String("alias_file", paths.AliasFile),
		slog.Int("workers", cfg.Pipeline.Workers))

	var pm *infrastructure.PipelineMetrics
	if *withOTel {
		providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := providers.Shutdown(ctx); err != nil {
				logger.Warn("OpenTelemetry shutdown", slog.String("error", err.Error()))
			}
		}()

		pm, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			slog.Error("Failed to create pipeline metrics", "error", err)
			os.Exit(1)
		}
	}

	runner, err := pipeline.NewRunner(cfg, paths, logger, pm)
	if err != nil {
		logger.Error("Failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Progress lines go to stdout for whoever invoked us; the structured
	// log carries the same events with more detail.
	runner.Progress = func(file string, err error) {
		if err != nil {
			fmt.Printf("Skipped %s: %v\n", file, err)
			return
		}
		fmt.Printf("Processed %s\n", file)
	}

	// A cheap pre-scan so the invoker sees the workload before the run.
	if files, err := ingest.NewDiscovery(paths.InputDir).Discover(); err == nil {
		fmt.Printf("Found %d source files in %s\n", len(files), paths.InputDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One trace ID for the whole run so every log line correlates.
	ctx = infrastructure.EnsureTraceID(ctx)

	report, err := runner.Run(ctx)
	printReport(report, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		os.Exit(1)
	}
}

// printReport summarizes the run on stdout. The per-file lines already
// streamed through the progress callback.
func printReport(report *pipeline.RunReport, paths *config.Paths) {
	if report == nil {
		return
	}

	fmt.Printf("\nRun %s\n", report.RunID)
	fmt.Printf("  Files:      %d processed, %d skipped of %d discovered\n",
		len(report.FilesProcessed), len(report.FilesSkipped), report.FilesDiscovered)
	fmt.Printf("  Rows:       %d in, %d dropped, %d duplicates removed\n",
		report.RowsIn, report.DroppedTotal(), report.DuplicatesRemoved)
	fmt.Printf("  Output:     %d transactions, %d groups, %d metric rows\n",
		report.RecordsOut, report.GroupsOut, report.MatrixRows)

	if len(report.RowsDropped) > 0 {
		reasons := make([]string, 0, len(report.RowsDropped))
		for reason := range report.RowsDropped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		fmt.Printf("  Drops by reason:\n")
		for _, reason := range reasons {
			fmt.Printf("    %-20s %d\n", reason, report.RowsDropped[reason])
		}
	}

	for _, file := range report.OutputFiles {
		fmt.Printf("  Wrote %s\n", file)
	}
	fmt.Printf("  Report %s\n", paths.RunReportJSON)

	took := report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond)
	if report.Succeeded {
		fmt.Printf("Completed in %s\n", took)
	} else {
		fmt.Printf("Failed after %s: %s\n", took, report.Error)
	}
}
