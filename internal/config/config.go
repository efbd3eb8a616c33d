package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"nycsales/pkg/contracts/domain"
)

// Config is the full application configuration, shared by the pipeline
// CLI and the API server.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig tunes the HTTP listener. Defaults live in Default, not in
// struct tags: an envconfig default would count as "set by the environment"
// and shadow the config file.
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig tunes the per-client request limiter.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// PipelineConfig tunes a batch run.
type PipelineConfig struct {
	// Workers bounds the per-file fan-out before the aggregation barrier.
	// 1 disables parallelism.
	Workers int `yaml:"workers" envconfig:"WORKERS"`

	// MaxHeaderScan is how many leading rows are searched for the header.
	MaxHeaderScan int `yaml:"max_header_scan" envconfig:"MAX_HEADER_SCAN"`

	// DedupKeys are the canonical columns forming the duplicate natural key.
	// Empty means the built-in default key.
	DedupKeys []string `yaml:"dedup_keys" envconfig:"DEDUP_KEYS"`

	// RunTimeout bounds a whole pipeline run.
	RunTimeout time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT"`
}

// LoggingConfig selects log level, encoding and destination.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig anchors the data directories. Relative entries resolve
// against BaseDir; see Paths.
type PathsConfig struct {
	BaseDir   string `yaml:"base_dir" envconfig:"BASE_DIR"`
	InputDir  string `yaml:"input_dir" envconfig:"INPUT_DIR"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	AliasFile string `yaml:"alias_file" envconfig:"ALIAS_FILE"`
}

// Load reads configuration from the environment plus the first config
// file found in the usual locations.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration in three layers: built-in defaults, then the
// config file at path, then NYCSALES_* environment variables. An empty path
// means defaults plus environment only; a non-empty path that cannot be read
// is an error, since the caller asked for it.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// With no default tags envconfig only touches fields whose variable is
	// actually set, so unset variables leave the file layer alone.
	if err := envconfig.Process("NYCSALES", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile unmarshals one YAML config file over cfg. Fields the
// document does not name keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate rejects unusable settings and normalizes the rest.
func (c *Config) validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	c.Logging.normalize()
	return nil
}

func (s *ServerConfig) validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1: %d", p.Workers)
	}
	if p.MaxHeaderScan < 1 {
		return fmt.Errorf("max header scan must be at least 1: %d", p.MaxHeaderScan)
	}
	// Dedup keys, when configured, must name canonical columns.
	for _, key := range p.DedupKeys {
		if !slices.Contains(domain.CanonicalColumns(), key) {
			return fmt.Errorf("dedup key %q is not a canonical column", key)
		}
	}
	return nil
}

// normalize coerces unusable logging settings instead of failing the
// whole startup over them.
func (l *LoggingConfig) normalize() {
	if l.Format != "json" && l.Format != "text" {
		l.Format = "json"
	}
	if l.FilePath == "" {
		l.FilePath = "logs/app.log"
	}
}

// getConfigFilePath probes the usual config locations, nearest first.
func getConfigFilePath() string {
	candidates := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Default is the configuration the server runs with when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Pipeline: PipelineConfig{
			Workers:       DefaultWorkers,
			MaxHeaderScan: DefaultMaxHeaderScan,
			RunTimeout:    DefaultRunTimeout,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			InputDir:  DefaultInputDir,
			OutputDir: DefaultOutputDir,
			LogsDir:   DefaultLogsDir,
			AliasFile: AliasFileName,
		},
	}
}
