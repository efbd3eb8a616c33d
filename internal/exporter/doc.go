// Package exporter writes the pipeline's output tables as CSV.
//
// This package contains four main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, appends, and an optional UTF-8 BOM for Excel compatibility.
//
// TransactionsExporter: Streams the unified normalized transaction table
// (transactions.csv) with the canonical columns plus YEAR and BOROUGH NAME.
//
// SummariesExporter: Writes one group-summary table per sale year
// ({year}_summary.csv) including the year-over-year median change.
//
// MetricsExporter: Writes the borough-by-year metrics matrix
// (metrics_by_borough_year.csv) with affordability and market breadth.
//
// All cell formats are fixed-width decimal forms, so re-running the
// pipeline over identical input produces byte-identical files.
//
// Example usage:
//
//	paths := config.PathsAt(baseDir)
//
//	// Export the transaction table
//	tx := exporter.NewTransactionsExporter(paths)
//	n, err := tx.Export(records)
//
//	// Export per-year summaries
//	sm := exporter.NewSummariesExporter(paths)
//	files, err := sm.Export(summaries)
package exporter
