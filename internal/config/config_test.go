package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvOverrides blanks every override variable so ambient shell state
// cannot leak into assertions. t.Setenv restores the originals afterwards.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	keys := []string{
		"PG_DSN", "PG_ENABLED", "PG_QUERY_TIMEOUT",
		"REDIS_ADDR", "REDIS_ENABLED",
		"LODESTAR_DATA_DIR", "HTTP_PORT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	clearEnvOverrides(t)
	config := DefaultConfig()

	require.NoError(t, config.Err())
	assert.Equal(t, "lodestar_core", config.Strategy.Name)
	assert.Equal(t, "data", config.Data.Dir)
	assert.Equal(t, "INDEX", config.Data.BenchmarkSymbol)
	assert.Equal(t, "out", config.Export.Dir)
	assert.False(t, config.Cache.Enabled)
	assert.False(t, config.Database.Enabled)
	assert.False(t, config.Catalyst.UseProvider)
	assert.InDelta(t, 1.0, config.Fusion.Weights.Sum(), 1e-9)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfigFile(t, `
strategy:
  name: custom_scan
  workers: 4
data:
  dir: /var/bars
  benchmark_symbol: SPY
fusion:
  thresholds:
    capital_min: 70
backtest:
  initial_capital: 250000
monitor:
  port: 9090
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom_scan", config.Strategy.Name)
	assert.Equal(t, 4, config.Strategy.Workers)
	assert.Equal(t, "/var/bars", config.Data.Dir)
	assert.Equal(t, "SPY", config.Data.BenchmarkSymbol)
	assert.Equal(t, 70.0, config.Fusion.Thresholds.CapitalMin)
	assert.Equal(t, 250000.0, config.Backtest.InitialCapital)
	assert.Equal(t, 9090, config.Monitor.Port)

	// Sections and fields absent from the file keep their defaults.
	assert.Equal(t, 10, config.Strategy.MaxSignalsPerDay)
	assert.Equal(t, 75.0, config.Fusion.Thresholds.TechnicalMin)
	assert.Equal(t, 100, config.Backtest.LotSize)
	assert.Equal(t, 20, config.Regime.Window)
	assert.Equal(t, "out", config.Export.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "strategy: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadOrDefaultWithoutPath(t *testing.T) {
	clearEnvOverrides(t)
	config, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *config)
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnvOverrides(t)

	config := DefaultConfig()
	config.Strategy.Name = "roundtrip"
	config.Cache.Enabled = true
	config.Cache.Addr = "redis:6379"
	config.Database.QueryTimeout = 5 * time.Second
	config.Fusion.Thresholds.SClassMin = 72
	config.Catalyst.UseProvider = true
	config.Catalyst.Provider.URL = "https://events.example.com/v1/upcoming"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(&config, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, config, *loaded)
}

func TestEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("PG_DSN", "postgres://lodestar:secret@db:5432/lodestar")
	t.Setenv("PG_ENABLED", "true")
	t.Setenv("PG_QUERY_TIMEOUT", "5s")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_ENABLED", "1")
	t.Setenv("LODESTAR_DATA_DIR", "/srv/bars")
	t.Setenv("HTTP_PORT", "9191")

	config, err := LoadOrDefault("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://lodestar:secret@db:5432/lodestar", config.Database.DSN)
	assert.True(t, config.Database.Enabled)
	assert.Equal(t, 5*time.Second, config.Database.QueryTimeout)
	assert.Equal(t, "cache:6379", config.Cache.Addr)
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "/srv/bars", config.Data.Dir)
	assert.Equal(t, 9191, config.Monitor.Port)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("LODESTAR_DATA_DIR", "/srv/override")
	path := writeConfigFile(t, "data:\n  dir: /var/from-file\n")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/override", config.Data.Dir)
}

func TestEnvOverridesIgnoreMalformed(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("PG_ENABLED", "definitely")
	t.Setenv("HTTP_PORT", "eighty")

	config, err := LoadOrDefault("")
	require.NoError(t, err)

	assert.False(t, config.Database.Enabled)
	assert.Equal(t, 8080, config.Monitor.Port)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	clearEnvOverrides(t)
	config := DefaultConfig()
	config.Fusion.Weights.Capital = 0.9
	config.Backtest.InitialCapital = 0
	config.Database.Enabled = true
	config.Cache.Enabled = true
	config.Cache.Addr = ""
	config.Catalyst.UseProvider = true
	config.Data.Dir = ""
	config.Monitor.Port = -1

	problems := config.Validate()
	require.Len(t, problems, 7)

	joined := strings.Join(problems, "; ")
	assert.Contains(t, joined, "weights must sum to 1.0")
	assert.Contains(t, joined, "initial_capital must be positive")
	assert.Contains(t, joined, "dsn is required when persistence is enabled")
	assert.Contains(t, joined, "cache addr is required")
	assert.Contains(t, joined, "catalyst provider url is required")
	assert.Contains(t, joined, "data dir is required")
	assert.Contains(t, joined, "monitor port -1 out of range")

	err := config.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration:")
}
