package exporter

import (
	"fmt"
	"sort"
	"strconv"

	"nycsales/internal/config"
	"nycsales/pkg/contracts/domain"
)

// SummariesExporter writes one summary table per sale year, the layout the
// charting side consumes.
type SummariesExporter struct {
	csv   *CSVWriter
	paths *config.Paths
}

// NewSummariesExporter creates a per-year summary exporter.
func NewSummariesExporter(paths *config.Paths) *SummariesExporter {
	return &SummariesExporter{csv: NewCSVWriter(paths), paths: paths}
}

// SummaryHeader returns the column layout of a {year}_summary.csv table.
func SummaryHeader() []string {
	return []string{
		colBoroughName,
		domain.ColNeighborhood,
		domain.ColBuildingCategory,
		colYear,
		"NUM SALES",
		"MIN SALE PRICE",
		"AVG SALE PRICE",
		"MEDIAN SALE PRICE",
		"MAX SALE PRICE",
		"MEDIAN PRICE YOY PCT",
	}
}

// Export splits the summaries by year and writes one file per year, named
// by config.SummaryFilePattern. Row order inside a file follows the input,
// which the aggregator already sorts. Returns the written file paths in
// year order.
func (e *SummariesExporter) Export(summaries []domain.GroupSummary) ([]string, error) {
	byYear := make(map[int][][]string)
	for _, s := range summaries {
		byYear[s.Year] = append(byYear[s.Year], summaryRow(s))
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	paths := make([]string, 0, len(years))
	for _, year := range years {
		name := fmt.Sprintf(config.SummaryFilePattern, year)
		if err := e.csv.WriteSimpleCSV(name, SummaryHeader(), byYear[year]); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, e.paths.GetSummaryCSVPath(year))
	}
	return paths, nil
}

func summaryRow(s domain.GroupSummary) []string {
	return []string{
		s.BoroughName,
		s.Neighborhood,
		s.BuildingCategory,
		strconv.Itoa(s.Year),
		strconv.Itoa(s.NumSales),
		formatInt(s.MinPrice),
		formatPrice(s.AvgPrice),
		formatPrice(s.MedianPrice),
		formatInt(s.MaxPrice),
		formatOptPct(s.YoYPct),
	}
}
