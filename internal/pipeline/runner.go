package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nycsales/internal/aggregate"
	"nycsales/internal/config"
	"nycsales/internal/dedup"
	"nycsales/internal/errors"
	"nycsales/internal/exporter"
	"nycsales/internal/infrastructure"
	"nycsales/internal/ingest"
	"nycsales/internal/metrics"
	"nycsales/internal/normalize"
	"nycsales/internal/schema"
	"nycsales/pkg/contracts/domain"
)

// Runner executes one complete pipeline run. Stages are plain values built
// per runner; nothing survives between runs except configuration.
type Runner struct {
	paths      *config.Paths
	workers    int
	runTimeout time.Duration

	discovery  *ingest.Discovery
	reader     *ingest.Reader
	reconciler *schema.Reconciler
	normalizer *normalize.Normalizer
	dedup      *dedup.Deduplicator
	aggregator *aggregate.Aggregator
	engine     *metrics.Engine

	transactions *exporter.TransactionsExporter
	summaries    *exporter.SummariesExporter
	matrix       *exporter.MetricsExporter

	logger          *slog.Logger
	pipelineMetrics *infrastructure.PipelineMetrics
	tracer          trace.Tracer

	// Progress, when non-nil, receives one call per discovered file as its
	// result is folded into the run, in discovery order. err is the file's
	// skip cause, nil when it was processed.
	Progress func(file string, err error)
}

// NewRunner builds a runner from configuration. The alias file is optional;
// when absent the built-in alias table serves. pm may be nil when metrics
// are disabled.
func NewRunner(cfg *config.Config, paths *config.Paths, logger *slog.Logger, pm *infrastructure.PipelineMetrics) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	aliases := schema.DefaultAliasTable()
	if config.FileExists(paths.AliasFile) {
		loaded, err := schema.LoadAliasTable(paths.AliasFile)
		if err != nil {
			return nil, errors.NewConfigError("load alias table", err)
		}
		aliases = loaded
		logger.Info("alias table loaded", slog.String("path", paths.AliasFile))
	}

	deduplicator, err := dedup.NewDeduplicator(cfg.Pipeline.DedupKeys, logger)
	if err != nil {
		return nil, err
	}

	reconciler := schema.NewReconciler(aliases, schema.ReconcilerOptions{
		MaxHeaderScan: cfg.Pipeline.MaxHeaderScan,
	}, logger)

	return &Runner{
		paths:      paths,
		workers:    cfg.Pipeline.Workers,
		runTimeout: cfg.Pipeline.RunTimeout,

		discovery:  ingest.NewDiscovery(paths.InputDir),
		reader:     ingest.NewReader(logger),
		reconciler: reconciler,
		normalizer: normalize.NewNormalizer(logger),
		dedup:      deduplicator,
		aggregator: aggregate.NewAggregator(logger),
		engine:     metrics.NewEngine(logger),

		transactions: exporter.NewTransactionsExporter(paths),
		summaries:    exporter.NewSummariesExporter(paths),
		matrix:       exporter.NewMetricsExporter(paths),

		logger:          logger,
		pipelineMetrics: pm,
		tracer:          otel.Tracer(infrastructure.MeterName),
	}, nil
}

// fileResult carries one source file through the parallel section. Results
// hold their discovery index, so merge order never depends on completion
// order.
type fileResult struct {
	file    ingest.FileInfo
	records []domain.SaleRecord
	drop    normalize.DropReport
	err     error
}

// Run executes the pipeline and returns its report. The report is written
// to the run report path even when the run fails, so skip causes survive;
// output tables are only written by successful runs.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	infrastructure.RecordActiveRunChange(ctx, r.pipelineMetrics, 1)
	defer infrastructure.RecordActiveRunChange(ctx, r.pipelineMetrics, -1)

	r.logger.InfoContext(ctx, "pipeline run starting",
		slog.String("run_id", runID),
		slog.String("input_dir", r.paths.InputDir),
		slog.Int("workers", r.workers))

	report := &RunReport{
		RunID:          runID,
		StartedAt:      start.UTC(),
		FilesProcessed: []string{},
		RowsDropped:    make(map[string]int),
	}

	err := r.execute(ctx, runID, report)

	report.CompletedAt = time.Now().UTC()
	report.Succeeded = err == nil
	if err != nil {
		report.Error = err.Error()
		infrastructure.RecordError(ctx, err)
		r.logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	} else {
		r.logger.InfoContext(ctx, "pipeline run complete",
			slog.String("run_id", runID),
			slog.Int("files_processed", len(report.FilesProcessed)),
			slog.Int("records_out", report.RecordsOut),
			slog.Int("groups_out", report.GroupsOut),
			slog.Duration("took", time.Since(start)))
	}
	infrastructure.RecordRunMetrics(ctx, r.pipelineMetrics, runID, time.Since(start), err == nil, err)

	if werr := report.WriteJSON(r.paths.RunReportJSON); werr != nil {
		if err == nil {
			err = errors.NewStorageError("write run report", werr)
		} else {
			r.logger.WarnContext(ctx, "could not write run report", slog.String("error", werr.Error()))
		}
	}

	return report, err
}

func (r *Runner) execute(ctx context.Context, runID string, report *RunReport) error {
	files, err := r.discovery.Discover()
	if err != nil {
		return errors.NewStorageError("discover input files", err)
	}
	report.FilesDiscovered = len(files)
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"files.discovered": len(files),
	})
	if len(files) == 0 {
		return errors.NewAppError(errors.ErrTypeValidation,
			fmt.Sprintf("%v under %s", errors.ErrNoInputFiles, r.paths.InputDir), errors.ErrNoInputFiles)
	}

	results, err := r.processFiles(ctx, files)
	if err != nil {
		return err
	}

	var records []domain.SaleRecord
	for _, res := range results {
		if r.Progress != nil {
			r.Progress(res.file.Name, res.err)
		}
		if res.err != nil {
			report.FilesSkipped = append(report.FilesSkipped, SkippedFile{
				File:  res.file.Name,
				Cause: res.err.Error(),
			})
			if r.pipelineMetrics != nil {
				r.pipelineMetrics.FilesSkipped.Add(ctx, 1)
			}
			r.logger.WarnContext(ctx, "file skipped",
				slog.String("run_id", runID),
				slog.String("file", res.file.Name),
				slog.String("cause", res.err.Error()))
			continue
		}

		report.FilesProcessed = append(report.FilesProcessed, res.file.Name)
		report.RowsIn += res.drop.Rows
		for reason, n := range res.drop.Dropped {
			report.RowsDropped[reason] += n
			if r.pipelineMetrics != nil {
				r.pipelineMetrics.RowsDropped.Add(ctx, int64(n),
					otelmetric.WithAttributes(attribute.String("reason", reason)))
			}
		}
		if r.pipelineMetrics != nil {
			r.pipelineMetrics.FilesProcessed.Add(ctx, 1)
			r.pipelineMetrics.RowsProcessed.Add(ctx, int64(res.drop.Rows))
		}
		records = append(records, res.records...)
	}

	if len(report.FilesProcessed) == 0 {
		return errors.NewAppError(errors.ErrTypeValidation,
			fmt.Sprintf("all %d discovered files were skipped", len(files)), errors.ErrNoOutputs)
	}

	infrastructure.AddSpanEvent(ctx, "ingest.merged", map[string]interface{}{
		"files.processed": len(report.FilesProcessed),
		"files.skipped":   len(report.FilesSkipped),
		"rows.in":         report.RowsIn,
	})

	// Barrier: everything below is single-threaded.
	report.addProvenance(StageIngest, ingest.Version)
	report.addProvenance(StageSchema, schema.Version)
	report.addProvenance(StageNormalize, normalize.Version)

	var kept []domain.SaleRecord
	_ = r.stage(ctx, runID, StageDedup, func(ctx context.Context) error {
		var removed int
		kept, removed = r.dedup.Deduplicate(ctx, records)
		report.DuplicatesRemoved = removed
		report.RecordsOut = len(kept)
		if r.pipelineMetrics != nil {
			r.pipelineMetrics.DuplicatesRemoved.Add(ctx, int64(removed))
		}
		return nil
	})
	report.addProvenance(StageDedup, dedup.Version)

	var summaries []domain.GroupSummary
	if err := r.stage(ctx, runID, StageAggregate, func(ctx context.Context) error {
		var err error
		summaries, err = r.aggregator.Aggregate(ctx, kept)
		return err
	}); err != nil {
		return err
	}
	report.GroupsOut = len(summaries)
	report.addProvenance(StageAggregate, aggregate.Version)

	var matrix domain.MetricsMatrix
	_ = r.stage(ctx, runID, StageMetrics, func(ctx context.Context) error {
		summaries = r.engine.ApplyYoY(ctx, summaries)
		matrix = r.engine.BuildMatrix(ctx, summaries)
		return nil
	})
	report.MatrixRows = len(matrix)
	report.addProvenance(StageMetrics, metrics.Version)

	if err := r.stage(ctx, runID, StageExport, func(ctx context.Context) error {
		return r.export(report, kept, summaries, matrix)
	}); err != nil {
		return err
	}
	report.addProvenance(StageExport, exporter.Version)

	return nil
}

// processFiles runs read, reconcile, and normalize for every file with a
// bounded worker pool. Per-file failures land in the result slice; only
// context cancellation aborts the group.
func (r *Runner) processFiles(ctx context.Context, files []ingest.FileInfo) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, file := range files {
		g.Go(func() error {
			results[i] = r.processFile(gctx, file)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRunAborted, err)
	}

	return results, nil
}

func (r *Runner) processFile(ctx context.Context, file ingest.FileInfo) fileResult {
	ctx, span := r.tracer.Start(ctx, "pipeline.file",
		trace.WithAttributes(attribute.String("file", file.Name)))
	defer span.End()

	res := fileResult{file: file}

	batch, err := r.reader.Read(ctx, file.Path)
	if err != nil {
		res.err = err
		infrastructure.RecordError(ctx, err)
		return res
	}

	resolved, err := r.reconciler.Reconcile(ctx, batch)
	if err != nil {
		res.err = err
		infrastructure.RecordError(ctx, err)
		return res
	}

	records, drop, err := r.normalizer.Normalize(ctx, resolved)
	res.drop = drop
	if err != nil {
		res.err = err
		infrastructure.RecordError(ctx, err)
		return res
	}

	res.records = records
	return res
}

func (r *Runner) export(report *RunReport, records []domain.SaleRecord, summaries []domain.GroupSummary, matrix domain.MetricsMatrix) error {
	if _, err := r.transactions.Export(records); err != nil {
		return errors.NewStorageError("export transactions", err)
	}
	summaryFiles, err := r.summaries.Export(summaries)
	if err != nil {
		return errors.NewStorageError("export summaries", err)
	}
	if err := r.matrix.Export(matrix); err != nil {
		return errors.NewStorageError("export metrics matrix", err)
	}

	report.OutputFiles = append([]string{r.paths.TransactionsCSV}, summaryFiles...)
	report.OutputFiles = append(report.OutputFiles, r.paths.MetricsCSV)
	return nil
}

// stage wraps one barrier stage in a span plus duration metrics.
func (r *Runner) stage(ctx context.Context, runID, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	infrastructure.RecordStageMetrics(ctx, r.pipelineMetrics, runID, name, time.Since(start), err == nil)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return err
}

func (r *RunReport) addProvenance(stage, version string) {
	r.Provenance = append(r.Provenance, StageProvenance{
		Stage:       stage,
		Version:     version,
		CompletedAt: time.Now().UTC(),
	})
}
