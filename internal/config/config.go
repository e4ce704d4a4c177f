// Package config defines the configuration structures for the KnotWeave
// engine.  No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds HTTP server tunables.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// GRPCConfig holds the gRPC listener settings.  The listener carries the
// engine service and the standard health service.
type GRPCConfig struct {
	Port     int  `mapstructure:"port"`
	Disabled bool `mapstructure:"disabled"`
}

// ServerConfig groups the network listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// EngineConfig holds the mathematical engine constants.
type EngineConfig struct {
	// Temperature is the Boltzmann temperature used for stability.  Must be > 0.
	Temperature float64 `mapstructure:"temperature"`

	// StabilityReferenceMin/Max bound the per-strand free energy that maps
	// onto stability 1 and 0 respectively.
	StabilityReferenceMin float64 `mapstructure:"stability_reference_min"`
	StabilityReferenceMax float64 `mapstructure:"stability_reference_max"`

	// CrossingCeiling caps the reduced crossing count accepted by the
	// invariant calculator.
	CrossingCeiling int `mapstructure:"crossing_ceiling"`

	// MaxResolutionStates caps the distinct pairings a bracket resolution
	// holds after any one crossing.
	MaxResolutionStates int `mapstructure:"max_resolution_states"`

	// DefaultStrands is used by the CLI when no attribute vector is given.
	DefaultStrands int `mapstructure:"default_strands"`

	FlipRate   float64 `mapstructure:"flip_rate"`
	ShiftRate  float64 `mapstructure:"shift_rate"`
	GrowthRate float64 `mapstructure:"growth_rate"`

	// WeaveWorkers bounds pairwise scoring parallelism; 0 means NumCPU.
	WeaveWorkers int `mapstructure:"weave_workers"`
}

// CacheConfig holds the two computation cache instances' settings.
type CacheConfig struct {
	KnotTTL        time.Duration `mapstructure:"knot_ttl"`
	KnotCapacity   int           `mapstructure:"knot_capacity"`
	CompatTTL      time.Duration `mapstructure:"compat_ttl"`
	CompatCapacity int           `mapstructure:"compat_capacity"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Disabled  bool   `mapstructure:"disabled"`
	GoMetrics bool   `mapstructure:"go_metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server  ServerConfig       `mapstructure:"server"`
	Log     logging.LogConfig  `mapstructure:"log"`
	Engine  EngineConfig       `mapstructure:"engine"`
	Cache   CacheConfig        `mapstructure:"cache"`
	Metrics MetricsConfig      `mapstructure:"metrics"`
}

// NewDefaultConfig returns a Config populated entirely from defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// Any error is fatal at startup.
func (c *Config) Validate() error {
	if c.Server.HTTP.Port < 1 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("config: server.http.port %d is out of range [1, 65535]", c.Server.HTTP.Port)
	}
	if !c.Server.GRPC.Disabled {
		if c.Server.GRPC.Port < 1 || c.Server.GRPC.Port > 65535 {
			return fmt.Errorf("config: server.grpc.port %d is out of range [1, 65535]", c.Server.GRPC.Port)
		}
		if c.Server.GRPC.Port == c.Server.HTTP.Port {
			return fmt.Errorf("config: server.grpc.port must differ from server.http.port")
		}
	}

	// Engine
	if c.Engine.Temperature <= 0 {
		return fmt.Errorf("config: %w",
			errors.InvalidTemperature("engine.temperature must be > 0").WithDetailf("got %g", c.Engine.Temperature))
	}
	if c.Engine.StabilityReferenceMax <= c.Engine.StabilityReferenceMin {
		return fmt.Errorf("config: engine.stability_reference_max (%g) must exceed stability_reference_min (%g)",
			c.Engine.StabilityReferenceMax, c.Engine.StabilityReferenceMin)
	}
	if c.Engine.CrossingCeiling < 1 {
		return fmt.Errorf("config: engine.crossing_ceiling must be ≥ 1, got %d", c.Engine.CrossingCeiling)
	}
	if c.Engine.DefaultStrands < 2 {
		return fmt.Errorf("config: engine.default_strands must be ≥ 2, got %d", c.Engine.DefaultStrands)
	}
	for name, rate := range map[string]float64{
		"flip_rate":   c.Engine.FlipRate,
		"shift_rate":  c.Engine.ShiftRate,
		"growth_rate": c.Engine.GrowthRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("config: engine.%s must be in [0, 1], got %g", name, rate)
		}
	}
	if c.Engine.WeaveWorkers < 0 {
		return fmt.Errorf("config: engine.weave_workers must be ≥ 0, got %d", c.Engine.WeaveWorkers)
	}

	// Cache
	if c.Cache.KnotTTL <= 0 || c.Cache.CompatTTL <= 0 {
		return fmt.Errorf("config: cache TTLs must be positive")
	}
	if c.Cache.KnotCapacity < 1 || c.Cache.CompatCapacity < 1 {
		return fmt.Errorf("config: cache capacities must be ≥ 1")
	}
	if c.Cache.WaitTimeout <= 0 {
		return fmt.Errorf("config: cache.wait_timeout must be positive")
	}

	// Log
	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if !c.Metrics.Disabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}
	return nil
}
