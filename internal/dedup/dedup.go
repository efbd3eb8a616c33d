// Package dedup removes repeated transactions from the merged record
// stream. Rolling files overlap annualized files for the same period, so
// the same deed transfer can arrive from two sources.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// Version of the deduplication stage, recorded in run report provenance.
const Version = "1.0.2"

// DefaultKeyColumns is the natural key of one transaction. Two rows equal on
// all of these describe the same deed transfer.
func DefaultKeyColumns() []string {
	return []string{
		domain.ColBorough,
		domain.ColNeighborhood,
		domain.ColBuildingCategory,
		domain.ColBlock,
		domain.ColLot,
		domain.ColAddress,
		domain.ColApartmentNumber,
		domain.ColSaleDate,
		domain.ColZipCode,
		domain.ColSalePrice,
	}
}

// Deduplicator drops records whose natural key was already seen, keeping
// the first occurrence in input order.
type Deduplicator struct {
	keyColumns []string
	logger     *slog.Logger
}

// NewDeduplicator creates a deduplicator over the given key columns. An
// empty set uses DefaultKeyColumns; unknown column names error so a config
// typo cannot silently weaken the key.
func NewDeduplicator(keyColumns []string, logger *slog.Logger) (*Deduplicator, error) {
	if len(keyColumns) == 0 {
		keyColumns = DefaultKeyColumns()
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, col := range keyColumns {
		if _, ok := keyField(domain.SaleRecord{}, col); !ok {
			return nil, errors.NewConfigError(fmt.Sprintf("unknown dedup key column %q", col), nil)
		}
	}

	return &Deduplicator{keyColumns: keyColumns, logger: logger}, nil
}

// Deduplicate returns the records whose key appears for the first time, in
// their input order, plus the number of duplicates removed. The output is a
// stable subsequence of the input.
func (d *Deduplicator) Deduplicate(ctx context.Context, records []domain.SaleRecord) ([]domain.SaleRecord, int) {
	seen := make(map[string]bool, len(records))
	kept := make([]domain.SaleRecord, 0, len(records))

	for _, rec := range records {
		key := d.key(rec)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, rec)
	}

	removed := len(records) - len(kept)
	d.logger.InfoContext(ctx, "records deduplicated",
		slog.Int("input", len(records)),
		slog.Int("kept", len(kept)),
		slog.Int("removed", removed))

	return kept, removed
}

// key joins the record's key fields with an unprintable separator so field
// boundaries cannot collide with address text.
func (d *Deduplicator) key(rec domain.SaleRecord) string {
	parts := make([]string, len(d.keyColumns))
	for i, col := range d.keyColumns {
		parts[i], _ = keyField(rec, col)
	}
	return strings.Join(parts, "\x1f")
}

// keyField renders one canonical column of a record as a key fragment. The
// second return is false for columns that cannot participate in the key.
func keyField(rec domain.SaleRecord, col string) (string, bool) {
	switch col {
	case domain.ColBorough:
		return fmt.Sprintf("%d", rec.Borough), true
	case domain.ColNeighborhood:
		return rec.Neighborhood, true
	case domain.ColBuildingCategory:
		return rec.BuildingCategory, true
	case domain.ColTaxClassPresent:
		return rec.TaxClassPresent, true
	case domain.ColBlock:
		return rec.Block, true
	case domain.ColLot:
		return rec.Lot, true
	case domain.ColEasement:
		return rec.Easement, true
	case domain.ColBuildingClassPresent:
		return rec.BuildingClassPresent, true
	case domain.ColAddress:
		return rec.Address, true
	case domain.ColApartmentNumber:
		return rec.ApartmentNumber, true
	case domain.ColZipCode:
		return rec.ZipCode, true
	case domain.ColTaxClassAtSale:
		return rec.TaxClassAtSale, true
	case domain.ColBuildingClassAtSale:
		return rec.BuildingClassAtSale, true
	case domain.ColSalePrice:
		return fmt.Sprintf("%d", rec.SalePrice), true
	case domain.ColSaleDate:
		return rec.SaleDate.Format("2006-01-02"), true
	default:
		return "", false
	}
}
