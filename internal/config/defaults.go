package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 9090
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodySize     = 1 << 20

	DefaultTemperature           = 1.0
	DefaultStabilityReferenceMin = 0.0
	DefaultStabilityReferenceMax = 15.0
	DefaultCrossingCeiling       = 128
	DefaultMaxResolutionStates   = 1 << 18
	DefaultStrands               = 12
	DefaultFlipRate              = 0.5
	DefaultShiftRate             = 0.25
	DefaultGrowthRate            = 0.25

	DefaultKnotTTL        = time.Hour
	DefaultKnotCapacity   = 10000
	DefaultCompatTTL      = 30 * time.Minute
	DefaultCompatCapacity = 50000
	DefaultWaitTimeout    = 5 * time.Second
	DefaultSweepInterval  = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "knotweave"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly set values are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.HTTP.Port == 0 {
		cfg.Server.HTTP.Port = DefaultHTTPPort
	}
	if cfg.Server.HTTP.ReadTimeout == 0 {
		cfg.Server.HTTP.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.HTTP.WriteTimeout == 0 {
		cfg.Server.HTTP.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.HTTP.ShutdownTimeout == 0 {
		cfg.Server.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.HTTP.MaxBodySize == 0 {
		cfg.Server.HTTP.MaxBodySize = DefaultMaxBodySize
	}
	if len(cfg.Server.HTTP.AllowedOrigins) == 0 {
		cfg.Server.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.GRPC.Port == 0 {
		cfg.Server.GRPC.Port = DefaultGRPCPort
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.Temperature == 0 {
		cfg.Engine.Temperature = DefaultTemperature
	}
	if cfg.Engine.StabilityReferenceMax == 0 {
		cfg.Engine.StabilityReferenceMax = DefaultStabilityReferenceMax
	}
	if cfg.Engine.CrossingCeiling == 0 {
		cfg.Engine.CrossingCeiling = DefaultCrossingCeiling
	}
	if cfg.Engine.MaxResolutionStates == 0 {
		cfg.Engine.MaxResolutionStates = DefaultMaxResolutionStates
	}
	if cfg.Engine.DefaultStrands == 0 {
		cfg.Engine.DefaultStrands = DefaultStrands
	}
	if cfg.Engine.FlipRate == 0 {
		cfg.Engine.FlipRate = DefaultFlipRate
	}
	if cfg.Engine.ShiftRate == 0 {
		cfg.Engine.ShiftRate = DefaultShiftRate
	}
	if cfg.Engine.GrowthRate == 0 {
		cfg.Engine.GrowthRate = DefaultGrowthRate
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.KnotTTL == 0 {
		cfg.Cache.KnotTTL = DefaultKnotTTL
	}
	if cfg.Cache.KnotCapacity == 0 {
		cfg.Cache.KnotCapacity = DefaultKnotCapacity
	}
	if cfg.Cache.CompatTTL == 0 {
		cfg.Cache.CompatTTL = DefaultCompatTTL
	}
	if cfg.Cache.CompatCapacity == 0 {
		cfg.Cache.CompatCapacity = DefaultCompatCapacity
	}
	if cfg.Cache.WaitTimeout == 0 {
		cfg.Cache.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = DefaultSweepInterval
	}

	// ── Log / Metrics ─────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
