package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nycsales/internal/config"
)

// Version of the export stage, recorded in run report provenance.
const Version = "1.0.3"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter renders export tables as CSV files under the run's output
// directory.
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter returns a writer rooted at the configured output tree.
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions controls a single WriteCSV call.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM so Excel opens the file correctly
}

// WriteCSV writes one table to filePath. Relative paths land under the
// output directory; parent directories are created as needed.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	file, err := w.open(fullPath, options)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	defer cw.Flush()

	// Headers belong only at the top of a fresh file.
	if !options.Append && len(options.Headers) > 0 {
		if err := cw.Write(options.Headers); err != nil {
			return fmt.Errorf("write header row: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return cw.Error()
}

// open prepares the destination file: makes the parent directory, picks
// truncate vs append, and stamps the BOM on fresh files when asked.
func (w *CSVWriter) open(fullPath string, options WriteOptions) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if options.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fullPath, err)
	}

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			file.Close()
			return nil, fmt.Errorf("write BOM: %w", err)
		}
	}
	return file, nil
}

// WriteSimpleCSV writes headers followed by records, replacing any
// existing file.
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records})
}

// AppendToCSV adds records to the end of an existing file without
// touching its header.
func (w *CSVWriter) AppendToCSV(filePath string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{Records: records, Append: true})
}

// StreamWriter emits rows one at a time. The transactions export uses it
// so a full year of sales never sits in memory as strings.
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens filePath, writes the header row and hands back
// a StreamWriter positioned for data rows.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	slog.Debug("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", fullPath, err)
	}

	cw := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header row: %w", err)
		}
	}
	return &StreamWriter{path: fullPath, file: file, writer: cw}, nil
}

// WriteRecord appends one data row.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered rows and closes the file. A flush failure wins
// over a close failure since it means rows were lost.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return s.file.Close()
}

// resolvePath resolves a path against the output directory. Absolute paths
// pass through untouched so tests and one-off exports can write anywhere.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return w.paths.GetOutputPath(filePath)
}
