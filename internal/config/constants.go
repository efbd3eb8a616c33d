package config

import "time"

// Application constants - all hardcoded values for the sales pipeline
const (
	// Application Info
	AppName    = "NYC Property Sales Pipeline"
	AppVersion = "0.3.0"

	// File Paths (relative to executable)
	DefaultDataDir   = "data"
	DefaultInputDir  = "data/input"
	DefaultOutputDir = "data/output"
	DefaultLogsDir   = "logs"

	// Well-known files
	AliasFileName        = "aliases.yaml"
	ConfigFileName       = "config.yaml"
	RunReportFileName    = "run_report.json"
	TransactionsFileName = "transactions.csv"
	MetricsFileName      = "metrics_by_borough_year.csv"

	// SummaryFilePattern names the per-year summary tables, e.g.
	// 2020_summary.csv.
	SummaryFilePattern = "%d_summary.csv"

	// Pipeline defaults
	DefaultWorkers       = 4
	DefaultMaxHeaderScan = 20

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second per client
	DefaultBurstSize = 50

	// Operation Timeouts
	DefaultRunTimeout = 1 * time.Hour

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints (internal)
	APIBasePath    = "/api"
	HealthEndpoint = "/healthz"
	PromEndpoint   = "/metrics"
)
