package exporter

import (
	"fmt"
	"strconv"

	"nycsales/internal/config"
	"nycsales/pkg/contracts/domain"
)

// MetricsExporter writes the borough-by-year metrics matrix.
type MetricsExporter struct {
	csv *CSVWriter
}

// NewMetricsExporter creates a metrics matrix exporter.
func NewMetricsExporter(paths *config.Paths) *MetricsExporter {
	return &MetricsExporter{csv: NewCSVWriter(paths)}
}

// MetricsHeader returns the column layout of metrics_by_borough_year.csv.
func MetricsHeader() []string {
	return []string{
		colBoroughName,
		colYear,
		"NUM SALES",
		"MEDIAN SALE PRICE",
		"AFFORDABILITY INDEX",
		"MARKET BREADTH",
		"NUM NEIGHBORHOODS",
	}
}

// Export writes the matrix in its input order, which BuildMatrix already
// sorts by borough and year.
func (e *MetricsExporter) Export(matrix domain.MetricsMatrix) error {
	records := make([][]string, 0, len(matrix))
	for _, row := range matrix {
		records = append(records, metricsRow(row))
	}

	if err := e.csv.WriteSimpleCSV(config.MetricsFileName, MetricsHeader(), records); err != nil {
		return fmt.Errorf("write %s: %w", config.MetricsFileName, err)
	}
	return nil
}

func metricsRow(row domain.MetricsRow) []string {
	return []string{
		row.BoroughName,
		strconv.Itoa(row.Year),
		strconv.Itoa(row.NumSales),
		formatPrice(row.MedianPrice),
		formatOptPrice(row.AffordabilityP25),
		formatOptShare(row.Breadth),
		strconv.Itoa(row.NumNeighborhoods),
	}
}
