package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"nycsales/internal/config"
	"nycsales/internal/exporter"
	"nycsales/internal/pipeline"
	"nycsales/pkg/contracts/domain"
)

// DataService reads the pipeline output tables back for the API layer.
// Parsed tables are cached per file and invalidated when the file's size or
// mtime changes, so a fresh pipeline run is picked up without restarting
// the server.
type DataService struct {
	paths  *config.Paths
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	value   interface{}
}

// NewDataService creates a data service bound to the pipeline's output
// paths.
func NewDataService(paths *config.Paths, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("DataService initialized with paths",
		slog.String("output_dir", paths.OutputDir),
		slog.String("transactions_csv", paths.TransactionsCSV),
		slog.String("metrics_csv", paths.MetricsCSV))

	return &DataService{
		paths:  paths,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// GetSummaries returns group summaries, optionally narrowed to one year and
// one borough. year 0 means every year with a summary table; borough is
// matched case-insensitively against the five display names.
func (ds *DataService) GetSummaries(ctx context.Context, year int, borough string) ([]domain.GroupSummary, error) {
	if borough != "" && !domain.IsBoroughName(borough) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBorough, borough)
	}

	years, err := ds.SummaryYears(ctx)
	if err != nil {
		return nil, err
	}
	if year != 0 {
		if !containsInt(years, year) {
			return nil, fmt.Errorf("%w: %d", ErrYearNotFound, year)
		}
		years = []int{year}
	}

	summaries := []domain.GroupSummary{}
	for _, y := range years {
		rows, err := ds.summariesForYear(y)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if borough != "" && !strings.EqualFold(row.BoroughName, borough) {
				continue
			}
			summaries = append(summaries, row)
		}
	}

	ds.logger.DebugContext(ctx, "summaries served",
		slog.Int("year", year),
		slog.String("borough", borough),
		slog.Int("rows", len(summaries)))
	return summaries, nil
}

// SummaryYears lists the years that have a summary table, ascending.
func (ds *DataService) SummaryYears(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(ds.paths.OutputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSummaries
		}
		return nil, fmt.Errorf("list output directory: %w", err)
	}

	var years []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var year int
		if n, err := fmt.Sscanf(entry.Name(), config.SummaryFilePattern, &year); err == nil && n == 1 {
			years = append(years, year)
		}
	}
	if len(years) == 0 {
		return nil, ErrNoSummaries
	}

	sort.Ints(years)
	return years, nil
}

// GetMetrics returns the borough-by-year metrics matrix.
func (ds *DataService) GetMetrics(ctx context.Context) (domain.MetricsMatrix, error) {
	path := ds.paths.MetricsCSV
	value, err := ds.cached(path, func() (interface{}, error) {
		return parseMetricsTable(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoMetrics
		}
		return nil, err
	}

	matrix := value.(domain.MetricsMatrix)
	ds.logger.DebugContext(ctx, "metrics served", slog.Int("rows", len(matrix)))
	return matrix, nil
}

// GetRunReport returns the report of the most recent pipeline run.
func (ds *DataService) GetRunReport(ctx context.Context) (*pipeline.RunReport, error) {
	path := ds.paths.RunReportJSON
	value, err := ds.cached(path, func() (interface{}, error) {
		return pipeline.ReadReport(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoRunReport
		}
		return nil, err
	}
	return value.(*pipeline.RunReport), nil
}

func (ds *DataService) summariesForYear(year int) ([]domain.GroupSummary, error) {
	path := ds.paths.GetSummaryCSVPath(year)
	value, err := ds.cached(path, func() (interface{}, error) {
		return parseSummaryTable(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %d", ErrYearNotFound, year)
		}
		return nil, err
	}
	return value.([]domain.GroupSummary), nil
}

// cached returns the parsed value for path, reloading through load when the
// file's stamp differs from the cached one.
func (ds *DataService) cached(path string, load func() (interface{}, error)) (interface{}, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if entry, ok := ds.cache[path]; ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.value, nil
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	ds.cache[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), value: value}
	ds.logger.Debug("table cache refreshed", slog.String("path", path))
	return value, nil
}

func parseSummaryTable(path string) ([]domain.GroupSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read summary header: %w", err)
	}
	if !equalHeader(header, exporter.SummaryHeader()) {
		return nil, fmt.Errorf("unexpected summary table layout in %s", filepath.Base(path))
	}

	var rows []domain.GroupSummary
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read summary row: %w", err)
		}

		row, err := parseSummaryRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSummaryRow(record []string) (domain.GroupSummary, error) {
	year, err := strconv.Atoi(record[3])
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse year %q: %w", record[3], err)
	}
	numSales, err := strconv.Atoi(record[4])
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse num sales %q: %w", record[4], err)
	}
	minPrice, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse min price %q: %w", record[5], err)
	}
	avgPrice, err := strconv.ParseFloat(record[6], 64)
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse avg price %q: %w", record[6], err)
	}
	medianPrice, err := strconv.ParseFloat(record[7], 64)
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse median price %q: %w", record[7], err)
	}
	maxPrice, err := strconv.ParseInt(record[8], 10, 64)
	if err != nil {
		return domain.GroupSummary{}, fmt.Errorf("parse max price %q: %w", record[8], err)
	}

	var yoy *float64
	if record[9] != "" {
		v, err := strconv.ParseFloat(record[9], 64)
		if err != nil {
			return domain.GroupSummary{}, fmt.Errorf("parse yoy %q: %w", record[9], err)
		}
		yoy = &v
	}

	return domain.GroupSummary{
		GroupKey: domain.GroupKey{
			BoroughName:      record[0],
			Neighborhood:     record[1],
			BuildingCategory: record[2],
			Year:             year,
		},
		NumSales:    numSales,
		AvgPrice:    avgPrice,
		MedianPrice: medianPrice,
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		YoYPct:      yoy,
	}, nil
}

func parseMetricsTable(path string) (domain.MetricsMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read metrics header: %w", err)
	}
	if !equalHeader(header, exporter.MetricsHeader()) {
		return nil, fmt.Errorf("unexpected metrics table layout in %s", filepath.Base(path))
	}

	var matrix domain.MetricsMatrix
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read metrics row: %w", err)
		}

		row, err := parseMetricsRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

func parseMetricsRow(record []string) (domain.MetricsRow, error) {
	year, err := strconv.Atoi(record[1])
	if err != nil {
		return domain.MetricsRow{}, fmt.Errorf("parse year %q: %w", record[1], err)
	}
	numSales, err := strconv.Atoi(record[2])
	if err != nil {
		return domain.MetricsRow{}, fmt.Errorf("parse num sales %q: %w", record[2], err)
	}
	medianPrice, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return domain.MetricsRow{}, fmt.Errorf("parse median price %q: %w", record[3], err)
	}
	neighborhoods, err := strconv.Atoi(record[6])
	if err != nil {
		return domain.MetricsRow{}, fmt.Errorf("parse num neighborhoods %q: %w", record[6], err)
	}

	row := domain.MetricsRow{
		BoroughName:      record[0],
		Year:             year,
		NumSales:         numSales,
		MedianPrice:      medianPrice,
		NumNeighborhoods: neighborhoods,
	}

	if record[4] != "" {
		v, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return domain.MetricsRow{}, fmt.Errorf("parse affordability %q: %w", record[4], err)
		}
		row.AffordabilityP25 = &v
	}
	if record[5] != "" {
		v, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return domain.MetricsRow{}, fmt.Errorf("parse breadth %q: %w", record[5], err)
		}
		row.Breadth = &v
	}
	return row, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func containsInt(values []int, want int) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
