package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// Version of the reconciliation stage, recorded in run report provenance.
const Version = "1.2.0"

// Reconciler locates the header row in a raw spreadsheet batch and binds
// every canonical column to a source column index. It never mutates row
// data; downstream stages read cells through the resulting ColumnMap.
type Reconciler struct {
	aliases           *AliasTable
	maxHeaderScan     int
	maxMalformedShare float64
	logger            *slog.Logger
}

// ReconcilerOptions tunes header detection. Zero values fall back to the
// defaults used by the pipeline configuration.
type ReconcilerOptions struct {
	// MaxHeaderScan bounds how many leading rows are examined for the
	// header. Rolling-sales files carry up to five banner rows before it.
	MaxHeaderScan int
	// MaxMalformedShare is the tolerated fraction of short rows below the
	// header before the file is rejected as corrupt.
	MaxMalformedShare float64
}

const (
	defaultMaxHeaderScan     = 20
	defaultMaxMalformedShare = 0.5
)

// NewReconciler creates a schema reconciler. A nil table uses the built-in
// alias rules; a nil logger falls back to slog.Default().
func NewReconciler(aliases *AliasTable, opts ReconcilerOptions, logger *slog.Logger) *Reconciler {
	if aliases == nil {
		aliases = DefaultAliasTable()
	}
	if opts.MaxHeaderScan <= 0 {
		opts.MaxHeaderScan = defaultMaxHeaderScan
	}
	if opts.MaxMalformedShare <= 0 {
		opts.MaxMalformedShare = defaultMaxMalformedShare
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		aliases:           aliases,
		maxHeaderScan:     opts.MaxHeaderScan,
		maxMalformedShare: opts.MaxMalformedShare,
		logger:            logger,
	}
}

// Reconcile finds the header row of a raw batch, resolves each header cell
// through the alias table, and returns the batch's data rows together with
// the canonical column map. It fails with a schema mismatch when any
// canonical column is missing, when a canonical column is claimed twice, or
// when the rows below the header are mostly too short to carry the schema.
func (r *Reconciler) Reconcile(ctx context.Context, batch domain.RawBatch) (domain.ResolvedBatch, error) {
	if len(batch.Rows) == 0 {
		return domain.ResolvedBatch{}, errors.NewAppError(errors.ErrTypeSchemaMismatch,
			fmt.Sprintf("%s: %v", batch.Source, errors.ErrEmptyBatch), errors.ErrEmptyBatch).
			WithContext("file", batch.Source)
	}

	headerIdx := r.findHeaderRow(batch.Rows)
	if headerIdx < 0 {
		return domain.ResolvedBatch{}, errors.NewAppError(errors.ErrTypeSchemaMismatch,
			fmt.Sprintf("%s: %v within first %d rows", batch.Source, errors.ErrHeaderNotFound, r.maxHeaderScan), errors.ErrHeaderNotFound).
			WithContext("file", batch.Source)
	}

	columns, unknown, err := r.resolveHeader(batch.Source, batch.Rows[headerIdx])
	if err != nil {
		return domain.ResolvedBatch{}, err
	}

	rows := batch.Rows[headerIdx+1:]
	if err := r.checkRowShape(batch.Source, rows, len(batch.Rows[headerIdx])); err != nil {
		return domain.ResolvedBatch{}, err
	}

	r.logger.DebugContext(ctx, "schema reconciled",
		slog.String("file", batch.Source),
		slog.Int("header_row", headerIdx),
		slog.Int("data_rows", len(rows)),
		slog.Int("unknown_columns", len(unknown)))
	if len(unknown) > 0 {
		r.logger.WarnContext(ctx, "ignoring unknown columns",
			slog.String("file", batch.Source),
			slog.String("columns", strings.Join(unknown, ", ")))
	}

	return domain.ResolvedBatch{
		Source:  batch.Source,
		Columns: columns,
		Rows:    rows,
	}, nil
}

// findHeaderRow returns the index of the first row whose leading three
// non-empty cells fold to BOROUGH, NEIGHBORHOOD and BUILDING CLASS CATEGORY.
// Banner and blank rows above the header never satisfy the predicate.
func (r *Reconciler) findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > r.maxHeaderScan {
		limit = r.maxHeaderScan
	}

	want := []string{domain.ColBorough, domain.ColNeighborhood, domain.ColBuildingCategory}
	for i := 0; i < limit; i++ {
		var lead []string
		for _, cell := range rows[i] {
			folded := Fold(cell)
			if folded == "" {
				continue
			}
			lead = append(lead, folded)
			if len(lead) == len(want) {
				break
			}
		}
		if len(lead) < len(want) {
			continue
		}
		if lead[0] == want[0] && lead[1] == want[1] && lead[2] == want[2] {
			return i
		}
	}
	return -1
}

// resolveHeader maps each header cell through the alias table and verifies
// that all 21 canonical columns are present exactly once. Cells resolving to
// nothing are reported back as unknown so callers can log them.
func (r *Reconciler) resolveHeader(source string, header []string) (domain.ColumnMap, []string, error) {
	columns := make(domain.ColumnMap, len(domain.CanonicalColumns()))
	var unknown []string

	for idx, cell := range header {
		canonical, ok := r.aliases.Resolve(cell)
		if !ok {
			if folded := Fold(cell); folded != "" {
				unknown = append(unknown, folded)
			}
			continue
		}
		if prev, dup := columns[canonical]; dup {
			return nil, nil, errors.NewAppError(errors.ErrTypeSchemaMismatch,
				fmt.Sprintf("column %q mapped twice (source columns %d and %d)", canonical, prev, idx), nil).
				WithContext("file", source)
		}
		columns[canonical] = idx
	}

	var missing []string
	for _, col := range domain.CanonicalColumns() {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, errors.NewSchemaMismatchError(source, missing, unknown)
	}
	return columns, unknown, nil
}

// checkRowShape rejects files where most data rows are too short to hold the
// canonical columns, which is the signature of a truncated or corrupt
// download. Fully empty rows are not counted; the normalizer drops those.
func (r *Reconciler) checkRowShape(source string, rows [][]string, headerWidth int) error {
	if len(rows) == 0 {
		return nil
	}

	minWidth := headerWidth / 2
	var observed, malformed int
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		observed++
		if len(row) < minWidth {
			malformed++
		}
	}
	if observed == 0 {
		return nil
	}

	share := float64(malformed) / float64(observed)
	if share > r.maxMalformedShare {
		return errors.NewAppError(errors.ErrTypeSchemaMismatch,
			fmt.Sprintf("%d of %d data rows shorter than %d cells, file looks corrupt", malformed, observed, minWidth), nil).
			WithContext("file", source)
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
