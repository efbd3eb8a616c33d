package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// Reader loads one source file into a RawBatch. Cell values are kept as the
// strings the file carries; reconciliation and typing happen downstream.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a source file reader. A nil logger falls back to
// slog.Default().
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Read loads the file at path and returns its rows. Failures are storage
// errors scoped to the file; callers skip the file and continue the run.
func (r *Reader) Read(ctx context.Context, path string) (domain.RawBatch, error) {
	name := filepath.Base(path)

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = r.readWorkbook(path)
	case ".csv":
		rows, err = r.readCSV(path)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return domain.RawBatch{}, errors.NewStorageError(fmt.Sprintf("read %s", name), err).
			WithContext("file", name)
	}

	r.logger.DebugContext(ctx, "file read",
		slog.String("file", name),
		slog.Int("rows", len(rows)))

	return domain.RawBatch{Source: name, Rows: rows}, nil
}

// readWorkbook reads the first sheet of an Excel workbook. Rolling-sales
// workbooks publish one sheet per file.
func (r *Reader) readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV reads a CSV export. Field counts vary across vintages, so the
// reader does not enforce a fixed width; a UTF-8 BOM on the first byte is
// stripped.
func (r *Reader) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if err := stripBOM(br); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

func stripBOM(br *bufio.Reader) error {
	bom, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read csv: %w", err)
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		if _, err := br.Discard(3); err != nil {
			return fmt.Errorf("failed to read csv: %w", err)
		}
	}
	return nil
}
