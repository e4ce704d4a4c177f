package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "KNOTWEAVE"

// envKeys lists every leaf key so AutomaticEnv can resolve them during
// Unmarshal even when no config file mentions them.
var envKeys = []string{
	"server.http.port", "server.http.read_timeout", "server.http.write_timeout",
	"server.http.shutdown_timeout", "server.http.max_body_size", "server.http.allowed_origins",
	"server.grpc.port", "server.grpc.disabled",
	"log.level", "log.format",
	"engine.temperature", "engine.stability_reference_min", "engine.stability_reference_max",
	"engine.crossing_ceiling", "engine.max_resolution_states", "engine.default_strands",
	"engine.flip_rate", "engine.shift_rate", "engine.growth_rate", "engine.weave_workers",
	"cache.knot_ttl", "cache.knot_capacity", "cache.compat_ttl", "cache.compat_capacity",
	"cache.wait_timeout", "cache.sweep_interval",
	"metrics.namespace", "metrics.disabled", "metrics.go_metrics",
}

// newViper builds a Viper instance with YAML file type, the KNOTWEAVE_ env
// prefix and a "." → "_" key replacer, so "engine.temperature" resolves to
// KNOTWEAVE_ENGINE_TEMPERATURE.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges KNOTWEAVE_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from KNOTWEAVE_* environment variables and
// defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file changes.  Invalid revisions are reported to onError and
// skipped.  Only runtime-safe settings (log level) should be applied by the
// callback; engine constants are fixed for the life of the process.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error.  main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
