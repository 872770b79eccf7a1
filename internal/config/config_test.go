package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmtool/internal/cdf"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cdf.V2, cfg.WriterVersion())
	assert.Equal(t, 30, cfg.Series.LabelWidth)
	assert.Equal(t, 500*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 1e-12, cfg.Tolerances().CorrelationDiag)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store.DatabasePath, cfg.Store.DatabasePath)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harmtool.yaml")
	content := `
data_dir: /data/harmonisation
writer:
  format: cdf1
series:
  label_width: 24
validation:
  symmetry_tolerance: 1e-10
watch:
  debounce: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/harmonisation", cfg.DataDir)
	assert.Equal(t, cdf.V1, cfg.WriterVersion())
	assert.Equal(t, 24, cfg.Series.LabelWidth)
	assert.Equal(t, 1e-10, cfg.Tolerances().Symmetry)
	assert.Equal(t, 2*time.Second, cfg.GetDebounce())
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.5, cfg.Series.ScanlineWidth)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HARM_DATA_DIR", "/mnt/products")
	t.Setenv("HARM_DB", "/mnt/index.db")
	t.Setenv("HARM_WRITER_FORMAT", "cdf1")
	t.Setenv("HARM_LOG_LEVEL", "debug")
	t.Setenv("HARM_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/mnt/products", cfg.DataDir)
	assert.Equal(t, "/mnt/index.db", cfg.Store.DatabasePath)
	assert.Equal(t, cdf.V1, cfg.WriterVersion())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Debug)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown format", func(c *Config) { c.Writer.Format = "netcdf4" }},
		{"zero label width", func(c *Config) { c.Series.LabelWidth = 0 }},
		{"negative scanline width", func(c *Config) { c.Series.ScanlineWidth = -1 }},
		{"negative tolerance", func(c *Config) { c.Validation.CovarianceDiagonal = -1e-9 }},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "harmtool.yaml")
	cfg := DefaultConfig()
	cfg.DataDir = "/srv/avhrr"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
