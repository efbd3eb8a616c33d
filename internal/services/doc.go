// Package services sits between the HTTP handlers and the pipeline's
// output files, so the transport layer never touches CSV or JSON parsing.
//
// DataService reads the summary, metrics, and run report tables with a
// per-file cache keyed on size and mtime; a fresh pipeline run is picked
// up on the next request without a restart. HealthService answers the
// liveness and readiness probes and reports version information.
//
// Missing or not-yet-produced data surfaces as sentinel errors
// (ErrNoSummaries, ErrNoMetrics, ErrNoRunReport, ErrYearNotFound,
// ErrUnknownBorough, ErrInvalidInput) that the handlers translate into
// problem responses.
package services
