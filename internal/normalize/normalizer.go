// Package normalize turns reconciled source rows into typed SaleRecords.
// Rows that cannot become a trustworthy record are dropped and counted per
// reason; a row never fails the file on its own.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// Version of the normalization stage, recorded in run report provenance.
const Version = "1.1.0"

// Drop reasons, in the order they are checked per row and reported per file.
const (
	ReasonEmptyRow          = "empty_row"
	ReasonEmbeddedHeader    = "embedded_header"
	ReasonBadBorough        = "bad_borough"
	ReasonBadPrice          = "bad_price"
	ReasonNonpositivePrice  = "nonpositive_price"
	ReasonBadDate           = "bad_date"
	ReasonMissingGroupField = "missing_group_field"
)

// DropReasons returns every rejection reason in reporting order.
func DropReasons() []string {
	return []string{
		ReasonEmptyRow,
		ReasonEmbeddedHeader,
		ReasonBadBorough,
		ReasonBadPrice,
		ReasonNonpositivePrice,
		ReasonBadDate,
		ReasonMissingGroupField,
	}
}

// DropReport accounts for every input row of one file: Rows = Kept plus the
// sum over Dropped.
type DropReport struct {
	Source  string         `json:"source"`
	Rows    int            `json:"rows"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

// DroppedTotal returns the number of rows dropped across all reasons.
func (r DropReport) DroppedTotal() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// Normalizer performs the row-level coercions of the cleaning stage. It is
// stateless apart from its logger; one instance may serve concurrent files.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil logger falls back to
// slog.Default().
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts the rows of a reconciled batch into SaleRecords. Every
// dropped row is counted under exactly one reason, checked in DropReasons
// order. It fails only when zero rows of a file survive; that failure is
// scoped to the file.
func (n *Normalizer) Normalize(ctx context.Context, batch domain.ResolvedBatch) ([]domain.SaleRecord, DropReport, error) {
	report := DropReport{
		Source:  batch.Source,
		Rows:    len(batch.Rows),
		Dropped: make(map[string]int),
	}

	records := make([]domain.SaleRecord, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		record, reason := n.normalizeRow(row, batch.Columns)
		if reason != "" {
			report.Dropped[reason]++
			continue
		}
		records = append(records, record)
	}
	report.Kept = len(records)

	n.logger.InfoContext(ctx, "rows normalized",
		slog.String("file", batch.Source),
		slog.Int("rows", report.Rows),
		slog.Int("kept", report.Kept),
		slog.Int("dropped", report.DroppedTotal()))

	if len(records) == 0 {
		err := errors.NewParsingError(fmt.Sprintf("no rows of %s survived normalization", batch.Source), nil).
			WithContext("file", batch.Source).
			WithContext("dropped", report.Dropped)
		return nil, report, err
	}
	return records, report, nil
}

// normalizeRow builds one SaleRecord, or returns the reason the row cannot
// become one.
func (n *Normalizer) normalizeRow(row []string, columns domain.ColumnMap) (domain.SaleRecord, string) {
	if isEmptyRow(row) {
		return domain.SaleRecord{}, ReasonEmptyRow
	}
	if isEmbeddedHeader(row, columns) {
		return domain.SaleRecord{}, ReasonEmbeddedHeader
	}

	borough, ok := parseIntCell(cell(row, columns, domain.ColBorough))
	if !ok {
		return domain.SaleRecord{}, ReasonBadBorough
	}
	boroughName, ok := domain.BoroughName(int(borough))
	if !ok {
		return domain.SaleRecord{}, ReasonBadBorough
	}

	price, reason := parseSalePrice(cell(row, columns, domain.ColSalePrice))
	if reason != "" {
		return domain.SaleRecord{}, reason
	}

	saleDate, ok := parseSaleDate(cell(row, columns, domain.ColSaleDate))
	if !ok {
		return domain.SaleRecord{}, ReasonBadDate
	}

	neighborhood := NormalizeLabel(cell(row, columns, domain.ColNeighborhood))
	category := collapseUpper(cell(row, columns, domain.ColBuildingCategory))
	if neighborhood == "" || category == "" {
		return domain.SaleRecord{}, ReasonMissingGroupField
	}

	return domain.SaleRecord{
		Borough:              int(borough),
		BoroughName:          boroughName,
		Neighborhood:         neighborhood,
		BuildingCategory:     category,
		TaxClassPresent:      strings.TrimSpace(cell(row, columns, domain.ColTaxClassPresent)),
		Block:                strings.TrimSpace(cell(row, columns, domain.ColBlock)),
		Lot:                  strings.TrimSpace(cell(row, columns, domain.ColLot)),
		Easement:             strings.TrimSpace(cell(row, columns, domain.ColEasement)),
		BuildingClassPresent: strings.TrimSpace(cell(row, columns, domain.ColBuildingClassPresent)),
		Address:              strings.TrimSpace(cell(row, columns, domain.ColAddress)),
		ApartmentNumber:      strings.ToUpper(strings.TrimSpace(cell(row, columns, domain.ColApartmentNumber))),
		ZipCode:              strings.TrimSpace(cell(row, columns, domain.ColZipCode)),
		ResidentialUnits:     optionalInt(cell(row, columns, domain.ColResidentialUnits)),
		CommercialUnits:      optionalInt(cell(row, columns, domain.ColCommercialUnits)),
		TotalUnits:           optionalInt(cell(row, columns, domain.ColTotalUnits)),
		LandSquareFeet:       optionalFloat(cell(row, columns, domain.ColLandSquareFeet)),
		GrossSquareFeet:      optionalFloat(cell(row, columns, domain.ColGrossSquareFeet)),
		YearBuilt:            optionalInt(cell(row, columns, domain.ColYearBuilt)),
		TaxClassAtSale:       strings.TrimSpace(cell(row, columns, domain.ColTaxClassAtSale)),
		BuildingClassAtSale:  strings.TrimSpace(cell(row, columns, domain.ColBuildingClassAtSale)),
		SalePrice:            price,
		SaleDate:             saleDate,
		SaleYear:             saleDate.Year(),
	}, ""
}

// NormalizeLabel folds a neighborhood label the way grouped output expects
// it: uppercase, underscores as spaces, whitespace runs collapsed, trimmed.
func NormalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return collapseUpper(s)
}

func collapseUpper(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// cell reads one canonical column from a source row. Rows shorter than the
// header are common in older exports; a cell past the end reads as empty.
func cell(row []string, columns domain.ColumnMap, col string) string {
	idx, ok := columns[col]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// isEmbeddedHeader spots header rows repeated inside the data region, which
// concatenated multi-year exports carry between blocks.
func isEmbeddedHeader(row []string, columns domain.ColumnMap) bool {
	borough := strings.ToUpper(strings.TrimSpace(cell(row, columns, domain.ColBorough)))
	neighborhood := strings.ToUpper(strings.TrimSpace(cell(row, columns, domain.ColNeighborhood)))
	return borough == domain.ColBorough || neighborhood == domain.ColNeighborhood
}

// parseSalePrice coerces a price cell to a positive integer dollar amount.
// Currency formatting is tolerated; zero and negative prices mark non-market
// transfers (deed transfers between parties) and are rejected.
func parseSalePrice(s string) (int64, string) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if cleaned == "" {
		return 0, ReasonBadPrice
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ReasonBadPrice
	}
	if v <= 0 {
		return 0, ReasonNonpositivePrice
	}
	return int64(math.Round(v)), ""
}

// saleDateFormats lists the date renderings observed across source vintages.
// First match wins.
var saleDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

func parseSaleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range saleDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseIntCell parses an integer cell, tolerating the float rendering
// ("3.0") that re-exported spreadsheets produce.
func parseIntCell(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

func optionalInt(s string) *int64 {
	v, ok := parseIntCell(strings.ReplaceAll(s, ",", ""))
	if !ok {
		return nil
	}
	return &v
}

func optionalFloat(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
