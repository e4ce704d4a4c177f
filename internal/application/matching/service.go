// Package matching provides the application-level engine service.  It is the
// boundary between the HTTP/CLI handlers and the knot domain: it projects
// entities, memoises knots and compatibility results, and records metrics.
package matching

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/compat"
	"github.com/turtacn/KnotWeave/internal/domain/dynamics"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/internal/domain/projection"
	"github.com/turtacn/KnotWeave/internal/domain/statmech"
	"github.com/turtacn/KnotWeave/internal/infrastructure/cache"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
)

// Cache names, also used as metric labels.
const (
	KnotCacheName   = "knot"
	CompatCacheName = "compat"
)

// Operation names, used as metric labels.
const (
	OpBuild         = "build"
	OpEvolve        = "evolve"
	OpCompatibility = "compatibility"
	OpWeave         = "weave"
	OpStability     = "stability"
)

// Service defines the engine operations.
type Service interface {
	// BuildKnot projects attrs onto a braid and builds its knot.
	BuildKnot(ctx context.Context, attrs []float64, et common.EntityType) (*knot.Knot, error)
	// BuildRecord is BuildKnot plus entity bookkeeping.  An empty entityID
	// is replaced by a fresh UUID.
	BuildRecord(ctx context.Context, entityID string, attrs []float64, et common.EntityType) (knot.EntityKnotRecord, error)
	// BuildFromWord builds the knot of an explicit braid word.
	BuildFromWord(ctx context.Context, w braid.Word) (*knot.Knot, error)

	EvolveKnot(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64) (*knot.Knot, error)
	EvolveKnotSteps(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64, steps int) (*knot.Knot, error)

	Compatibility(ctx context.Context, a, b *knot.Knot, quantum float64) (compat.Result, error)
	// WeaveCompatibility scores three or more knots; quantum holds one score
	// per pair i<j in lexicographic order.
	WeaveCompatibility(ctx context.Context, knots []*knot.Knot, quantum []float64) (compat.Result, error)

	Stability(ctx context.Context, k *knot.Knot) (float64, error)
	// StabilityAt evaluates the ensemble of k at an explicit temperature.
	StabilityAt(ctx context.Context, k *knot.Knot, temperature float64) (statmech.Ensemble, error)

	// Temperature is the engine's default Boltzmann temperature.
	Temperature() float64
	CacheStats() map[string]cache.Stats

	// Start launches the cache sweepers; Close stops them and rejects
	// further cached computations.
	Start(ctx context.Context)
	Close()
}

// Option customises the service.
type Option func(*serviceImpl)

// WithClock overrides the clock stamped on entity records.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) { s.now = now }
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	builder       *knot.Builder
	evolver       *dynamics.Evolver
	knotCache     *cache.Cache[*knot.Knot]
	compatCache   *cache.Cache[compat.Result]
	workers       int
	sweepInterval time.Duration
	logger        logging.Logger
	metrics       *prometheus.EngineMetrics
	now           func() time.Time
}

// NewService wires the engine from cfg.  metrics may be nil.
func NewService(cfg *config.Config, logger logging.Logger, metrics *prometheus.EngineMetrics, opts ...Option) (Service, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	builder, err := knot.NewBuilder(knot.BuilderConfig{
		Temperature: cfg.Engine.Temperature,
		Reference: statmech.Reference{
			Min: cfg.Engine.StabilityReferenceMin,
			Max: cfg.Engine.StabilityReferenceMax,
		},
		CrossingCeiling:     cfg.Engine.CrossingCeiling,
		MaxResolutionStates: cfg.Engine.MaxResolutionStates,
	})
	if err != nil {
		return nil, err
	}

	logger = logger.Named("matching")
	knotOpts := []cache.Option{
		cache.WithTTL(cfg.Cache.KnotTTL),
		cache.WithCapacity(cfg.Cache.KnotCapacity),
		cache.WithWaitTimeout(cfg.Cache.WaitTimeout),
		cache.WithLogger(logger),
	}
	compatOpts := []cache.Option{
		cache.WithTTL(cfg.Cache.CompatTTL),
		cache.WithCapacity(cfg.Cache.CompatCapacity),
		cache.WithWaitTimeout(cfg.Cache.WaitTimeout),
		cache.WithLogger(logger),
		cache.WithCopier(compat.Result.Clone),
	}
	if metrics != nil {
		knotOpts = append(knotOpts, cache.WithMetrics(metrics))
		compatOpts = append(compatOpts, cache.WithMetrics(metrics))
	}

	s := &serviceImpl{
		builder: builder,
		evolver: dynamics.NewEvolver(builder, dynamics.Rates{
			Flip:   cfg.Engine.FlipRate,
			Shift:  cfg.Engine.ShiftRate,
			Growth: cfg.Engine.GrowthRate,
		}),
		knotCache:     cache.New[*knot.Knot](KnotCacheName, knotOpts...),
		compatCache:   cache.New[compat.Result](CompatCacheName, compatOpts...),
		workers:       cfg.Engine.WeaveWorkers,
		sweepInterval: cfg.Cache.SweepInterval,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// observe records the outcome of one operation.  Client errors are not
// logged; anything else is.
func (s *serviceImpl) observe(op string, timer *prometheus.Timer, err error) {
	d := s.metrics.FinishOperation(op, timer, err)
	if err != nil && !errors.IsClientError(errors.GetCode(err)) {
		s.logger.Error("operation failed",
			logging.String("operation", op), logging.Duration("duration", d), logging.Code(err), logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Knots
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) BuildKnot(ctx context.Context, attrs []float64, et common.EntityType) (k *knot.Knot, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpBuild, timer, err) }(s.metrics.StartOperation(OpBuild))

	if _, err = projection.Threshold(et); err != nil {
		return nil, err
	}
	if err = projection.Validate(attrs); err != nil {
		return nil, err
	}
	k, err = s.knotCache.GetOrCompute(ctx, attributeKey(attrs, et), func(context.Context) (*knot.Knot, error) {
		w, err := projection.Project(attrs, et)
		if err != nil {
			return nil, err
		}
		return s.builder.Build(w)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveKnot(et.String(), k.CrossingNumber())
	}
	return k, nil
}

func (s *serviceImpl) BuildRecord(ctx context.Context, entityID string, attrs []float64, et common.EntityType) (knot.EntityKnotRecord, error) {
	if entityID == "" {
		entityID = string(common.NewID())
	}
	k, err := s.BuildKnot(ctx, attrs, et)
	if err != nil {
		return knot.EntityKnotRecord{}, err
	}
	return knot.EntityKnotRecord{
		EntityID:    entityID,
		EntityType:  et,
		Knot:        k,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *serviceImpl) BuildFromWord(ctx context.Context, w braid.Word) (k *knot.Knot, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpBuild, timer, err) }(s.metrics.StartOperation(OpBuild))

	// Keyed on the unreduced word so distinct inputs never collide before
	// the calculator has checked them.
	return s.knotCache.GetOrCompute(ctx, "word:"+w.Fingerprint(), func(context.Context) (*knot.Knot, error) {
		return s.builder.Build(w)
	})
}

func (s *serviceImpl) EvolveKnot(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64) (*knot.Knot, error) {
	return s.EvolveKnotSteps(ctx, k, p, seed, 1)
}

func (s *serviceImpl) EvolveKnotSteps(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64, steps int) (out *knot.Knot, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpEvolve, timer, err) }(s.metrics.StartOperation(OpEvolve))

	if k == nil {
		return nil, errors.InvalidParam("knot is required")
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return s.evolver.EvolveSteps(k, p, steps, dynamics.NewRand(seed))
}

// ─────────────────────────────────────────────────────────────────────────────
// Compatibility
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Compatibility(ctx context.Context, a, b *knot.Knot, quantum float64) (r compat.Result, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpCompatibility, timer, err) }(s.metrics.StartOperation(OpCompatibility))

	if a == nil || b == nil {
		return compat.Result{}, errors.InvalidParam("two knots are required")
	}
	fa, fb := a.Fingerprint(), b.Fingerprint()
	if fb < fa {
		fa, fb = fb, fa
	}
	key := "pair:" + fa + "|" + fb + "|" + floatKey(quantum)
	return s.compatCache.GetOrCompute(ctx, key, func(context.Context) (compat.Result, error) {
		return compat.Pair(a, b, quantum)
	})
}

func (s *serviceImpl) WeaveCompatibility(ctx context.Context, knots []*knot.Knot, quantum []float64) (r compat.Result, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpWeave, timer, err) }(s.metrics.StartOperation(OpWeave))

	var sb strings.Builder
	sb.WriteString("weave:")
	for i, k := range knots {
		if k == nil {
			return compat.Result{}, errors.InvalidParam("knot is required").WithDetailf("index=%d", i)
		}
		sb.WriteString(k.Fingerprint())
		sb.WriteByte('|')
	}
	for _, q := range quantum {
		sb.WriteString(floatKey(q))
		sb.WriteByte(',')
	}
	return s.compatCache.GetOrCompute(ctx, sb.String(), func(cctx context.Context) (compat.Result, error) {
		return compat.Group(cctx, knots, quantum, s.workers)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Stability
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Stability(ctx context.Context, k *knot.Knot) (float64, error) {
	ens, err := s.StabilityAt(ctx, k, s.builder.Temperature())
	if err != nil {
		return 0, err
	}
	return ens.Stability, nil
}

func (s *serviceImpl) StabilityAt(ctx context.Context, k *knot.Knot, temperature float64) (ens statmech.Ensemble, err error) {
	defer func(timer *prometheus.Timer) { s.observe(OpStability, timer, err) }(s.metrics.StartOperation(OpStability))

	if k == nil {
		return statmech.Ensemble{}, errors.InvalidParam("knot is required")
	}
	if err = ctx.Err(); err != nil {
		return statmech.Ensemble{}, err
	}
	return s.builder.EnsembleAt(k.Word(), temperature)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Temperature() float64 { return s.builder.Temperature() }

func (s *serviceImpl) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		KnotCacheName:   s.knotCache.Stats(),
		CompatCacheName: s.compatCache.Stats(),
	}
}

func (s *serviceImpl) Start(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	s.knotCache.Start(ctx, s.sweepInterval)
	s.compatCache.Start(ctx, s.sweepInterval)
}

func (s *serviceImpl) Close() {
	s.knotCache.Close()
	s.compatCache.Close()
	s.logger.Info("engine caches closed")
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache keys
// ─────────────────────────────────────────────────────────────────────────────

// attributeKey identifies a projection input exactly: floats are keyed by
// their bit patterns, so 0.1 and 0.1000000001 never share an entry.
func attributeKey(attrs []float64, et common.EntityType) string {
	parts := make([]string, len(attrs))
	for i, v := range attrs {
		parts[i] = floatKey(v)
	}
	return "attrs:" + et.String() + ":" + strings.Join(parts, ",")
}

func floatKey(v float64) string {
	return strconv.FormatUint(math.Float64bits(v), 16)
}
