// Package config handles global configuration loading using viper, the
// same pattern the teacher used for its capture-agent configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tsgopipe/tsgopipe/internal/log"
)

// GlobalConfig is the top-level static configuration, mapped to the
// `tsgopipe:` root key in YAML.
type GlobalConfig struct {
	Node    NodeConfig       `mapstructure:"node"`
	Control ControlConfig    `mapstructure:"control"`
	Metrics MetricsConfig    `mapstructure:"metrics"`
	Log     log.LoggerConfig `mapstructure:"log"`
}

// NodeConfig contains node identification settings.
type NodeConfig struct {
	Hostname string            `mapstructure:"hostname"` // empty = os.Hostname()
	Tags     map[string]string `mapstructure:"tags"`
}

// ControlConfig contains local control plane settings (internal/control).
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// MetricsConfig contains Prometheus metrics server settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

type configRoot struct {
	TSGoPipe GlobalConfig `mapstructure:"tsgopipe"`
}

// Load loads the global configuration from file. The YAML file uses
// `tsgopipe:` as root key; env vars use a TSGOPIPE_ prefix (e.g.
// TSGOPIPE_LOG_LEVEL for tsgopipe.log.level).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.TSGoPipe

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tsgopipe.control.pid_file", "/var/run/tsgopipe.pid")
	v.SetDefault("tsgopipe.control.socket", "/var/run/tsgopipe.sock")

	v.SetDefault("tsgopipe.log.level", "info")
	v.SetDefault("tsgopipe.log.time", "2006-01-02T15:04:05.000Z07:00")

	v.SetDefault("tsgopipe.metrics.enabled", true)
	v.SetDefault("tsgopipe.metrics.listen", ":9091")
	v.SetDefault("tsgopipe.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults not expressible as static viper defaults (hostname detection).
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "trace": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	return nil
}
