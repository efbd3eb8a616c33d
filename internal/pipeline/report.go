// Package pipeline wires the processing stages into a run: discover files,
// fan out ingestion and normalization, then aggregate, derive metrics, and
// export behind a single barrier.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Stage names used in provenance, metrics labels, and span names.
const (
	StageIngest    = "ingest"
	StageSchema    = "schema"
	StageNormalize = "normalize"
	StageDedup     = "dedup"
	StageAggregate = "aggregate"
	StageMetrics   = "metrics"
	StageExport    = "export"
)

// StageProvenance records that one stage of a run completed, and with which
// code version. The provenance list replaces version labels embedded in
// method names.
type StageProvenance struct {
	Stage       string    `json:"stage"`
	Version     string    `json:"version"`
	CompletedAt time.Time `json:"completed_at"`
}

// SkippedFile names a source file excluded from a run and why.
type SkippedFile struct {
	File  string `json:"file"`
	Cause string `json:"cause"`
}

// RunReport is the end-of-run summary: what was read, what was dropped and
// why, what was produced, and the stage provenance trail.
type RunReport struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error,omitempty"`

	FilesDiscovered int           `json:"files_discovered"`
	FilesProcessed  []string      `json:"files_processed"`
	FilesSkipped    []SkippedFile `json:"files_skipped,omitempty"`

	RowsIn            int            `json:"rows_in"`
	RowsDropped       map[string]int `json:"rows_dropped,omitempty"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	RecordsOut        int            `json:"records_out"`
	GroupsOut         int            `json:"groups_out"`
	MatrixRows        int            `json:"matrix_rows"`

	OutputFiles []string          `json:"output_files,omitempty"`
	Provenance  []StageProvenance `json:"provenance"`
}

// DroppedTotal returns the number of rows dropped across all files and
// reasons.
func (r *RunReport) DroppedTotal() int {
	total := 0
	for _, n := range r.RowsDropped {
		total += n
	}
	return total
}

// WriteJSON writes the report as indented JSON.
func (r *RunReport) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

// ReadReport loads a run report written by WriteJSON.
func ReadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run report: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse run report: %w", err)
	}
	return &report, nil
}
