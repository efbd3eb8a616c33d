package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths is the single place the on-disk layout is decided. Every component
// that touches a file receives its location from here rather than joining
// path fragments itself.
type Paths struct {
	BaseDir   string
	DataDir   string
	InputDir  string
	OutputDir string
	LogsDir   string

	// Config files
	AliasFile  string
	ConfigFile string

	// Well-known output files
	TransactionsCSV string
	MetricsCSV      string
	RunReportJSON   string
}

// GetPaths returns the application paths relative to the executable location.
// All paths are ALWAYS relative to the executable directory, never the
// current working directory, so the binaries behave the same regardless of
// where they are invoked from.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("resolve executable symlinks: %w", err)
	}

	return PathsAt(filepath.Dir(exe)), nil
}

// PathsAt builds the path set rooted at baseDir. Directory structure:
//
//	base/
//	  ├── config.yaml
//	  ├── aliases.yaml
//	  ├── data/
//	  │   ├── input/      (source spreadsheets)
//	  │   └── output/     (exported tables + run report)
//	  └── logs/
func PathsAt(baseDir string) *Paths {
	dataDir := filepath.Join(baseDir, DefaultDataDir)
	outputDir := filepath.Join(dataDir, "output")

	return &Paths{
		BaseDir:   baseDir,
		DataDir:   dataDir,
		InputDir:  filepath.Join(dataDir, "input"),
		OutputDir: outputDir,
		LogsDir:   filepath.Join(baseDir, DefaultLogsDir),

		AliasFile:  filepath.Join(baseDir, AliasFileName),
		ConfigFile: filepath.Join(baseDir, ConfigFileName),

		TransactionsCSV: filepath.Join(outputDir, TransactionsFileName),
		MetricsCSV:      filepath.Join(outputDir, MetricsFileName),
		RunReportJSON:   filepath.Join(outputDir, RunReportFileName),
	}
}

// EnsureDirectories creates the data/input/output/logs tree. Existing
// directories are left alone.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.InputDir, p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	slog.Debug("Directory tree ready",
		slog.String("data", p.DataDir),
		slog.String("logs", p.LogsDir))
	return nil
}

// GetRelativePath anchors subpath at the base directory. Relative paths
// from configuration (the log file, for instance) go through here so they
// resolve against the executable location, not the working directory.
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.BaseDir, subpath)
}

// FileExists reports whether path names an existing file or directory.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetInputPath returns the path for a source spreadsheet
func (p *Paths) GetInputPath(filename string) string {
	return filepath.Join(p.InputDir, filename)
}

// GetOutputPath returns the path for an exported table
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// GetSummaryCSVPath returns the path for a per-year summary table
// (e.g. 2020_summary.csv)
func (p *Paths) GetSummaryCSVPath(year int) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf(SummaryFilePattern, year))
}

// SetOutputDir moves the output directory and every table path derived
// from it. Used by flag overrides.
func (p *Paths) SetOutputDir(dir string) {
	p.OutputDir = dir
	p.TransactionsCSV = filepath.Join(dir, TransactionsFileName)
	p.MetricsCSV = filepath.Join(dir, MetricsFileName)
	p.RunReportJSON = filepath.Join(dir, RunReportFileName)
}

// LogPathResolution writes the resolved layout to the log at startup so a
// misplaced deployment is diagnosable from the first lines of output.
func (p *Paths) LogPathResolution() {
	slog.Info("Resolved filesystem layout",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("input", p.InputDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("config_files",
			slog.String("aliases", p.AliasFile),
			slog.String("config", p.ConfigFile),
		),
		slog.Group("output_files",
			slog.String("transactions_csv", p.TransactionsCSV),
			slog.String("metrics_csv", p.MetricsCSV),
			slog.String("run_report_json", p.RunReportJSON),
		))
}
