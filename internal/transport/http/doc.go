// Package http holds the HTTP handlers for the sales data API. Handlers
// parse the request, call a service, and render the result; anything that
// smells like business logic lives in internal/services.
//
// The data endpoints are read-only views over the pipeline's exported
// tables:
//
//	GET /api/summaries        group summaries, ?year= and ?borough= filters
//	GET /api/summaries/years  years that have a summary table
//	GET /api/metrics          the borough-by-year metrics matrix
//	GET /api/report           the most recent run report
//
// Probes and version:
//
//	GET /healthz              basic health
//	GET /healthz/live         liveness with runtime details
//	GET /healthz/ready        readiness; 503 until a run has produced tables
//	GET /api/version          build and runtime version information
//
// Every error response is an RFC 7807 problem document
// (application/problem+json); see internal/errors for the type vocabulary.
package http
