package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specforge/specforge/internal/engine"
)

// Defaults applied when neither config file sets a value.
const (
	// DefaultOutputDir is where artifacts are written relative to the
	// working directory.
	DefaultOutputDir = "artifacts"

	// DefaultOutputMode selects per-artifact files over an NDJSON bundle.
	DefaultOutputMode = "files"

	// DefaultLogLevel is the logging level used when unconfigured.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the console format for terminal output.
	DefaultLogFormat = "console"

	// DefaultReportSampleLimit is how many artifacts a report embeds.
	DefaultReportSampleLimit = 3
)

// defaultReportFormats lists the report renderings produced when the
// config file does not choose.
//
//nolint:gochecknoglobals // Compile-time default lookup table.
var defaultReportFormats = []string{"json", "markdown"}

// Config is the merged SpecForge configuration.
type Config struct {
	// Output controls where and how artifacts are written.
	Output OutputConfig `yaml:"output"`

	// Generation controls the engine run.
	Generation GenerationConfig `yaml:"generation"`

	// Logging controls log level, format, and destination.
	Logging LoggingConfig `yaml:"logging"`

	// Report controls run report rendering.
	Report ReportConfig `yaml:"report"`

	// Credentials controls the sealed credential store location.
	Credentials CredentialsConfig `yaml:"credentials"`
}

// OutputConfig controls artifact persistence.
type OutputConfig struct {
	// Dir is the artifact output directory.
	Dir string `yaml:"dir"`

	// Mode is "files" for one JSON file per artifact or "bundle" for a
	// single NDJSON file.
	Mode string `yaml:"mode"`

	// Compress enables zstd compression of written artifacts.
	Compress bool `yaml:"compress"`
}

// GenerationConfig controls the engine run. Zero values defer to the
// engine's own defaults.
type GenerationConfig struct {
	// Workers is the upper bound on concurrent workers.
	Workers int `yaml:"workers"`

	// BatchSize is the upper bound on operations per batch.
	BatchSize int `yaml:"batch_size"`

	// ChunkSize is the operations per streamed chunk.
	ChunkSize int `yaml:"chunk_size"`

	// Streaming selects streaming delivery for generate runs.
	Streaming bool `yaml:"streaming"`

	// DisableCaching turns the engine result cache off.
	DisableCaching bool `yaml:"disable_caching"`

	// CacheMaxEntries is the result cache ceiling.
	CacheMaxEntries int `yaml:"cache_max_entries"`

	// MaxBatchRetries is how many times a failed batch is re-dispatched.
	MaxBatchRetries int `yaml:"max_batch_retries"`

	// MemoryThresholdMB is the heap size that triggers the memory governor.
	MemoryThresholdMB int `yaml:"memory_threshold_mb"`

	// TimeoutSeconds is the per-batch processing deadline in seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// DisableNegative turns off negative test-case synthesis.
	DisableNegative bool `yaml:"disable_negative"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum level to emit.
	Level string `yaml:"level"`

	// Format is "console" or "json".
	Format string `yaml:"format"`

	// File, when set, routes logs to the given path instead of stderr.
	File string `yaml:"file"`
}

// ReportConfig controls run report rendering.
type ReportConfig struct {
	// Formats lists the renderings to produce: "json", "markdown", "html".
	Formats []string `yaml:"formats"`

	// SampleLimit is how many artifacts the report embeds as samples.
	SampleLimit int `yaml:"sample_limit"`
}

// CredentialsConfig controls the sealed credential store.
type CredentialsConfig struct {
	// File overrides the credential store path. Empty means
	// <config dir>/credentials.age.
	File string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:  DefaultOutputDir,
			Mode: DefaultOutputMode,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Report: ReportConfig{
			Formats:     append([]string(nil), defaultReportFormats...),
			SampleLimit: DefaultReportSampleLimit,
		},
	}
}

// New creates a Config from defaults overlaid with the global config file.
// A missing or unreadable global file leaves the defaults untouched; env
// overrides are applied last.
func New() *Config {
	cfg := DefaultConfig()

	if path, err := GetConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			// Merge failures fall back to defaults; NewWithProjectDir logs them.
			_ = ShallowMergeYAML(cfg, path)
		}
	}

	if level := os.Getenv("SPECFORGE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg
}

// EngineOptions maps the generation section onto engine options.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.Options{
		MaxWorkers:        c.Generation.Workers,
		BatchSize:         c.Generation.BatchSize,
		ChunkSize:         c.Generation.ChunkSize,
		MemoryThresholdMB: c.Generation.MemoryThresholdMB,
		DisableCaching:    c.Generation.DisableCaching,
		DisableStreaming:  !c.Generation.Streaming,
		CacheMaxEntries:   c.Generation.CacheMaxEntries,
		MaxBatchRetries:   c.Generation.MaxBatchRetries,
	}
	if c.Generation.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(c.Generation.TimeoutSeconds) * time.Second
	}
	return opts
}

// CredentialsPath returns the credential store file path, resolving the
// default location under the config directory when unconfigured.
func (c *Config) CredentialsPath() (string, error) {
	if c.Credentials.File != "" {
		return c.Credentials.File, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.age"), nil
}

// Save writes the configuration as YAML to the given path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing configuration file: %w", err)
	}

	return nil
}

// GetConfigDir returns the SpecForge configuration directory.
func GetConfigDir() (string, error) {
	if sfHome := os.Getenv("SPECFORGE_HOME"); sfHome != "" {
		return sfHome, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".specforge"), nil
}

// GetConfigPath returns the global config file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir ensures the configuration directory exists.
func EnsureConfigDir() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}
