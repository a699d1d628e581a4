// Package config loads and validates the composed application
// configuration: every subsystem contributes its own yaml-tagged section
// and defaults, this package only assembles them and layers environment
// overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/cache"
	"github.com/lodestar-quant/lodestar/internal/catalyst"
	"github.com/lodestar-quant/lodestar/internal/fusion"
	httpserver "github.com/lodestar-quant/lodestar/internal/interfaces/http"
	"github.com/lodestar-quant/lodestar/internal/persistence"
	"github.com/lodestar-quant/lodestar/internal/profile"
	"github.com/lodestar-quant/lodestar/internal/regime"
	"github.com/lodestar-quant/lodestar/internal/strategy"
)

// DataConfig points at the bar data the CLI loads.
type DataConfig struct {
	Dir             string `yaml:"dir"`
	BenchmarkSymbol string `yaml:"benchmark_symbol"`
	SectorSymbol    string `yaml:"sector_symbol"`
}

// CatalystConfig selects the event source: a local yaml calendar, an HTTP
// provider, or neither.
type CatalystConfig struct {
	CalendarPath string              `yaml:"calendar_path"`
	UseProvider  bool                `yaml:"use_provider"`
	Provider     catalyst.FeedConfig `yaml:"provider"`
}

// ExportConfig names the artifact directory.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Config is the full application configuration.
type Config struct {
	Profile  profile.Config           `yaml:"profile"`
	Fusion   fusion.Config            `yaml:"fusion"`
	Backtest backtest.Config          `yaml:"backtest"`
	Regime   regime.DetectorConfig    `yaml:"regime"`
	Strategy strategy.GeneratorConfig `yaml:"strategy"`
	Data     DataConfig               `yaml:"data"`
	Catalyst CatalystConfig           `yaml:"catalyst"`
	Cache    cache.Config             `yaml:"cache"`
	Database persistence.Config       `yaml:"database"`
	Monitor  httpserver.ServerConfig  `yaml:"monitor"`
	Export   ExportConfig             `yaml:"export"`
}

// DefaultConfig composes every subsystem's defaults.
func DefaultConfig() Config {
	return Config{
		Profile:  profile.DefaultConfig(),
		Fusion:   fusion.DefaultConfig(),
		Backtest: backtest.DefaultConfig(),
		Regime:   regime.DefaultDetectorConfig(),
		Strategy: strategy.DefaultGeneratorConfig(),
		Data: DataConfig{
			Dir:             "data",
			BenchmarkSymbol: "INDEX",
		},
		Catalyst: CatalystConfig{
			CalendarPath: "",
			UseProvider:  false,
			Provider:     catalyst.DefaultFeedConfig(""),
		},
		Cache:    cache.DefaultConfig(),
		Database: persistence.DefaultConfig(),
		Monitor:  httpserver.DefaultServerConfig(),
		Export:   ExportConfig{Dir: "out"},
	}
}

// Load reads path over the defaults: sections absent from the file keep
// their default values. Environment overrides apply last.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(&config)
	return &config, nil
}

// LoadOrDefault behaves like Load but serves pure defaults (plus env
// overrides) when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		config := DefaultConfig()
		applyEnvOverrides(&config)
		return &config, nil
	}
	return Load(path)
}

// Save writes the configuration as yaml.
func Save(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Validate aggregates every subsystem's complaints.
func (c *Config) Validate() []string {
	var problems []string

	if err := c.Fusion.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Backtest.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	problems = append(problems, c.Database.Validate()...)

	if c.Data.Dir == "" {
		problems = append(problems, "data dir is required")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		problems = append(problems, "cache addr is required when cache is enabled")
	}
	if c.Catalyst.UseProvider && c.Catalyst.Provider.URL == "" {
		problems = append(problems, "catalyst provider url is required when use_provider is set")
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		problems = append(problems, fmt.Sprintf("monitor port %d out of range", c.Monitor.Port))
	}
	return problems
}

// Err folds Validate into a single error, nil when the config is sound.
func (c *Config) Err() error {
	problems := c.Validate()
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// applyEnvOverrides layers deployment settings over the file: connection
// strings and switches change per environment, thresholds do not.
func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Database.Enabled = val
		}
	}
	if queryTimeout := os.Getenv("PG_QUERY_TIMEOUT"); queryTimeout != "" {
		if val, err := time.ParseDuration(queryTimeout); err == nil {
			config.Database.QueryTimeout = val
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.Addr = addr
	}
	if enabled := os.Getenv("REDIS_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Cache.Enabled = val
		}
	}
	if dir := os.Getenv("LODESTAR_DATA_DIR"); dir != "" {
		config.Data.Dir = dir
	}
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Monitor.Port = port
		}
	}
}
