package services

import "errors"

// Data service errors
var (
	// Summary table errors
	ErrNoSummaries  = errors.New("no summary tables found")
	ErrYearNotFound = errors.New("summary year not found")

	// Metrics matrix errors
	ErrNoMetrics = errors.New("metrics table not found")

	// Run report errors
	ErrNoRunReport = errors.New("run report not found")

	// Query errors
	ErrUnknownBorough = errors.New("unknown borough name")
	ErrInvalidInput   = errors.New("invalid input")
)
