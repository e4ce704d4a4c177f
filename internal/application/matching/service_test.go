package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/dynamics"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KnotWeave/internal/testutil"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
)

func newTestService(t *testing.T, opts ...Option) (Service, *testutil.MockLogger) {
	t.Helper()
	logger := testutil.NewMockLogger()
	svc, err := NewService(config.NewDefaultConfig(), logger, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, logger
}

func fromWord(t *testing.T, svc Service, strands int, gens ...int) *knot.Knot {
	t.Helper()
	k, err := svc.BuildFromWord(context.Background(), braid.MustNew(strands, gens...))
	require.NoError(t, err)
	return k
}

func TestNewService_InvalidEngineConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Engine.Temperature = -1
	_, err := NewService(cfg, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))
}

func TestBuildKnot_ProjectsAndCaches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	attrs := []float64{0.9, 0.9, 0.1}

	k1, err := svc.BuildKnot(ctx, attrs, common.EntityPerson)
	require.NoError(t, err)
	// σ1 σ1⁻¹ σ2⁻¹ reduces to σ2⁻¹
	assert.Equal(t, "3:-2", k1.Fingerprint())
	assert.Equal(t, uint32(1), k1.CrossingNumber())

	k2, err := svc.BuildKnot(ctx, attrs, common.EntityPerson)
	require.NoError(t, err)
	assert.Same(t, k1, k2)

	stats := svc.CacheStats()[KnotCacheName]
	assert.Equal(t, uint64(1), stats.Computations)
	assert.Equal(t, uint64(1), stats.Hits)

	// a different entity type is a different projection
	_, err = svc.BuildKnot(ctx, attrs, common.EntitySponsorship)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), svc.CacheStats()[KnotCacheName].Computations)
}

func TestBuildKnot_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.BuildKnot(ctx, []float64{0.1, 0.2}, common.EntityType("planet"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidEntityType))

	_, err = svc.BuildKnot(ctx, []float64{0.1, 1.2}, common.EntityBrand)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidAttributes))

	_, err = svc.BuildKnot(ctx, []float64{0.1}, common.EntityBrand)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGenerator))

	assert.Zero(t, svc.CacheStats()[KnotCacheName].Computations)
}

func TestBuildRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	rec, err := svc.BuildRecord(ctx, "", []float64{0.2, 0.9, 0.5, 0.1}, common.EntityCompany)
	require.NoError(t, err)
	_, err = uuid.Parse(rec.EntityID)
	assert.NoError(t, err)
	assert.Equal(t, common.EntityCompany, rec.EntityType)
	assert.Equal(t, now, rec.GeneratedAt)
	require.NotNil(t, rec.Knot)

	rec, err = svc.BuildRecord(ctx, "venue-7", []float64{0.2, 0.9}, common.EntityPlace)
	require.NoError(t, err)
	assert.Equal(t, "venue-7", rec.EntityID)
}

func TestBuildFromWord(t *testing.T) {
	svc, _ := newTestService(t)
	k := fromWord(t, svc, 2, 1, 1, 1)
	assert.Equal(t, uint32(3), k.CrossingNumber())
	assert.Equal(t, int64(3), k.Determinant().Int64())
	assert.Equal(t, -2, k.Signature())

	long := make([]int, config.DefaultCrossingCeiling+1)
	for i := range long {
		long[i] = 1
	}
	_, err := svc.BuildFromWord(context.Background(), braid.MustNew(2, long...))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedBraid))
}

func TestEvolveKnot_Deterministic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	parent := fromWord(t, svc, 4, 1, -2, 3, 1)
	before := parent.Fingerprint()
	p := dynamics.Perturbation{Mood: 0.6, Energy: 0.8, Stress: 0.3}

	a, err := svc.EvolveKnot(ctx, parent, p, 42)
	require.NoError(t, err)
	b, err := svc.EvolveKnot(ctx, parent, p, 42)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, 1, a.Generation())
	assert.Same(t, parent, a.Predecessor())
	assert.Equal(t, before, parent.Fingerprint())

	c, err := svc.EvolveKnotSteps(ctx, parent, p, 42, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Generation())

	// seed 0 is an alias for seed 1
	zero, err := svc.EvolveKnotSteps(ctx, parent, p, 0, 4)
	require.NoError(t, err)
	one, err := svc.EvolveKnotSteps(ctx, parent, p, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, one.Fingerprint(), zero.Fingerprint())
}

func TestEvolveKnot_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EvolveKnot(ctx, nil, dynamics.Perturbation{}, 1)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	k := fromWord(t, svc, 3, 1, 2)
	_, err = svc.EvolveKnot(ctx, k, dynamics.Perturbation{Mood: 2}, 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.EvolveKnot(cancelled, k, dynamics.Perturbation{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompatibility_SymmetricAndCached(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := fromWord(t, svc, 2, 1, 1, 1)
	b := fromWord(t, svc, 3, 1, -2, 1, -2)

	ab, err := svc.Compatibility(ctx, a, b, 0.8)
	require.NoError(t, err)
	ba, err := svc.Compatibility(ctx, b, a, 0.8)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.Nil(t, ab.WeaveScore)
	assert.InDelta(t, 0.625*0.8+0.375*ab.TopologicalScore, ab.IntegratedScore, 1e-12)

	stats := svc.CacheStats()[CompatCacheName]
	assert.Equal(t, uint64(1), stats.Computations)
	assert.Equal(t, uint64(1), stats.Hits)

	self, err := svc.Compatibility(ctx, a, a, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self.TopologicalScore, 1e-12)

	_, err = svc.Compatibility(ctx, a, b, 1.5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
	_, err = svc.Compatibility(ctx, a, nil, 0.5)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestWeaveCompatibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	knots := []*knot.Knot{
		fromWord(t, svc, 2, 1, 1, 1),
		fromWord(t, svc, 2, 1, 1, 1, 1, 1),
		fromWord(t, svc, 3, 1, -2, 1, -2),
	}

	r, err := svc.WeaveCompatibility(ctx, knots, []float64{0.9, 0.9, 0.1})
	require.NoError(t, err)
	require.NotNil(t, r.WeaveScore)
	assert.GreaterOrEqual(t, r.IntegratedScore, 0.0)
	assert.LessOrEqual(t, r.IntegratedScore, 1.0)

	again, err := svc.WeaveCompatibility(ctx, knots, []float64{0.9, 0.9, 0.1})
	require.NoError(t, err)
	assert.Equal(t, r, again)
	assert.NotSame(t, r.WeaveScore, again.WeaveScore)

	_, err = svc.WeaveCompatibility(ctx, knots[:2], []float64{0.5})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = svc.WeaveCompatibility(ctx, knots, []float64{0.5})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestStability(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	k := fromWord(t, svc, 3, 1, -2, 1, -2)

	s, err := svc.Stability(ctx, k)
	require.NoError(t, err)
	assert.InDelta(t, k.Stability(), s, 1e-12)

	hot, err := svc.StabilityAt(ctx, k, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hot.Stability, 0.0)
	assert.LessOrEqual(t, hot.Stability, 1.0)

	_, err = svc.StabilityAt(ctx, k, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))
}

func TestClose_RejectsCachedWork(t *testing.T) {
	svc, logger := newTestService(t)
	svc.Start(context.Background())
	svc.Close()

	assert.True(t, logger.HasMessage("info", "engine caches closed"))
	_, err := svc.BuildFromWord(context.Background(), braid.MustNew(2, 1))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheClosed))
	assert.True(t, logger.HasMessage("error", "operation failed"))
	v, ok := logger.Field("error", "operation failed", "operation")
	assert.True(t, ok)
	assert.Equal(t, OpBuild, v)
}

func TestMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewEngineMetrics(collector)
	svc, err := NewService(config.NewDefaultConfig(), nil, metrics)
	require.NoError(t, err)
	defer svc.Close()
	ctx := context.Background()

	_, err = svc.BuildKnot(ctx, []float64{0.9, 0.1}, common.EntityEvent)
	require.NoError(t, err)
	_, err = svc.BuildKnot(ctx, []float64{0.9, 0.1}, common.EntityEvent)
	require.NoError(t, err)
	_, err = svc.BuildKnot(ctx, []float64{0.9}, common.EntityEvent)
	require.Error(t, err)

	reg := collector.Registry()
	n, err := promtest.GatherAndCount(reg, "test_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "ok and error series")

	n, err = promtest.GatherAndCount(reg, "test_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = promtest.GatherAndCount(reg, "test_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = promtest.GatherAndCount(reg, "test_knot_crossings")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// every call is timed, failures included
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var timed uint64
	for _, mf := range mfs {
		if mf.GetName() != "test_operation_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			timed += m.GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(3), timed)
}
