// Package config holds the harmtool configuration: data locations, writer
// format, validation tolerances and logging, loaded from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
)

// Config holds all harmtool configuration.
type Config struct {
	// DataDir is where products are read from and written to by default.
	DataDir string `yaml:"data_dir"`

	Store      StoreConfig      `yaml:"store"`
	Writer     WriterConfig     `yaml:"writer"`
	Validation ValidationConfig `yaml:"validation"`
	Series     SeriesConfig     `yaml:"series"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the sqlite residual index.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WriterConfig configures written netCDF files.
type WriterConfig struct {
	Format string `yaml:"format"` // cdf1, cdf2
}

// ValidationConfig carries the schema validation tolerances. Zero symmetry
// tolerance means exact, matching files this tool wrote itself.
type ValidationConfig struct {
	SymmetryTolerance   float64 `yaml:"symmetry_tolerance"`
	CorrelationDiagonal float64 `yaml:"correlation_diagonal"`
	CovarianceDiagonal  float64 `yaml:"covariance_diagonal"`
}

// SeriesConfig describes the sensor series being harmonised.
type SeriesConfig struct {
	LabelWidth    int     `yaml:"label_width"`    // l_name dimension
	ScanlineWidth float64 `yaml:"scanline_width"` // seconds between scanlines
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".",
		Store: StoreConfig{
			DatabasePath: "data/harmtool.db",
		},
		Writer: WriterConfig{
			Format: "cdf2",
		},
		Validation: ValidationConfig{
			SymmetryTolerance:   0,
			CorrelationDiagonal: 1e-12,
			CovarianceDiagonal:  1e-9,
		},
		Series: SeriesConfig{
			LabelWidth:    dataset.DefaultLabelWidth,
			ScanlineWidth: 0.5,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies HARM_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("HARM_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if path := os.Getenv("HARM_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if format := os.Getenv("HARM_WRITER_FORMAT"); format != "" {
		c.Writer.Format = format
	}
	if level := os.Getenv("HARM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("HARM_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.Debug = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Writer.Format != "cdf1" && c.Writer.Format != "cdf2" {
		return fmt.Errorf("invalid writer format: %s (valid: cdf1, cdf2)", c.Writer.Format)
	}
	if c.Series.LabelWidth <= 0 {
		return fmt.Errorf("label width must be positive, got %d", c.Series.LabelWidth)
	}
	if c.Series.ScanlineWidth <= 0 {
		return fmt.Errorf("scanline width must be positive, got %g", c.Series.ScanlineWidth)
	}
	if c.Validation.SymmetryTolerance < 0 || c.Validation.CorrelationDiagonal < 0 ||
		c.Validation.CovarianceDiagonal < 0 {
		return fmt.Errorf("validation tolerances must not be negative")
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("invalid watch debounce: %w", err)
	}
	return nil
}

// WriterVersion returns the configured netCDF format version.
func (c *Config) WriterVersion() cdf.Version {
	if c.Writer.Format == "cdf1" {
		return cdf.V1
	}
	return cdf.V2
}

// Tolerances returns the validation tolerances in dataset form.
func (c *Config) Tolerances() dataset.Tolerances {
	return dataset.Tolerances{
		Symmetry:        c.Validation.SymmetryTolerance,
		CorrelationDiag: c.Validation.CorrelationDiagonal,
		CovarianceDiag:  c.Validation.CovarianceDiagonal,
	}
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
