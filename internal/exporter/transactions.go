package exporter

import (
	"fmt"
	"strconv"

	"nycsales/internal/config"
	"nycsales/pkg/contracts/domain"
)

// Derived columns appended after the canonical set in transactions.csv.
const (
	colYear        = "YEAR"
	colBoroughName = "BOROUGH NAME"
)

// TransactionsExporter writes the unified normalized transaction table.
type TransactionsExporter struct {
	csv *CSVWriter
}

// NewTransactionsExporter creates a transactions exporter.
func NewTransactionsExporter(paths *config.Paths) *TransactionsExporter {
	return &TransactionsExporter{csv: NewCSVWriter(paths)}
}

// TransactionsHeader returns the transactions.csv column layout: the 21
// canonical columns in canonical order, then YEAR and BOROUGH NAME.
func TransactionsHeader() []string {
	return append(domain.CanonicalColumns(), colYear, colBoroughName)
}

// Export streams every record to transactions.csv in input order and
// returns the number of rows written.
func (e *TransactionsExporter) Export(records []domain.SaleRecord) (int, error) {
	sw, err := e.csv.CreateStreamWriter(config.TransactionsFileName, TransactionsHeader())
	if err != nil {
		return 0, fmt.Errorf("create transactions stream: %w", err)
	}

	for i, rec := range records {
		if err := sw.WriteRecord(transactionRow(rec)); err != nil {
			sw.Close()
			return 0, fmt.Errorf("write transaction %d: %w", i, err)
		}
	}

	if err := sw.Close(); err != nil {
		return 0, fmt.Errorf("close transactions stream: %w", err)
	}
	return len(records), nil
}

func transactionRow(rec domain.SaleRecord) []string {
	return []string{
		strconv.Itoa(rec.Borough),
		rec.Neighborhood,
		rec.BuildingCategory,
		rec.TaxClassPresent,
		rec.Block,
		rec.Lot,
		rec.Easement,
		rec.BuildingClassPresent,
		rec.Address,
		rec.ApartmentNumber,
		rec.ZipCode,
		formatOptInt(rec.ResidentialUnits),
		formatOptInt(rec.CommercialUnits),
		formatOptInt(rec.TotalUnits),
		formatOptFloat(rec.LandSquareFeet),
		formatOptFloat(rec.GrossSquareFeet),
		formatOptInt(rec.YearBuilt),
		rec.TaxClassAtSale,
		rec.BuildingClassAtSale,
		formatInt(rec.SalePrice),
		formatDate(rec.SaleDate),
		strconv.Itoa(rec.SaleYear),
		rec.BoroughName,
	}
}
