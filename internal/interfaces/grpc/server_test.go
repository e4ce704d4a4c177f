package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KnotWeave/internal/testutil"
	"github.com/turtacn/KnotWeave/pkg/errors"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

type testEnv struct {
	server    *Server
	engine    *EngineClient
	health    healthpb.HealthClient
	logger    *testutil.MockLogger
	collector prometheus.MetricsCollector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewEngineMetrics(collector)
	logger := testutil.NewMockLogger()

	svc, err := matching.NewService(config.NewDefaultConfig(), logger, metrics)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	srv := NewServer(config.GRPCConfig{}, WithLogger(logger), WithMetrics(metrics), WithGracefulTimeout(time.Second))
	srv.RegisterEngine(NewEngineServer(svc))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{
		server:    srv,
		engine:    NewEngineClient(conn),
		health:    healthpb.NewHealthClient(conn),
		logger:    logger,
		collector: collector,
	}
}

func trefoil() dto.KnotInput {
	return dto.KnotInput{Braid: &dto.Braid{Strands: 2, Generators: []int{1, 1, 1}}}
}

func TestEngine_BuildKnot(t *testing.T) {
	env := newTestEnv(t)
	rec, err := env.engine.BuildKnot(context.Background(), &dto.BuildKnotRequest{
		EntityID:   "ent-1",
		EntityType: "person",
		Attributes: []float64{0.9, 0.9, 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, "ent-1", rec.EntityID)
	assert.Equal(t, "3:-2", rec.Knot.Fingerprint)
	assert.Equal(t, uint32(1), rec.Knot.CrossingNumber)
}

func TestEngine_EvolveAndStability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.engine.Evolve(ctx, &dto.EvolveRequest{
		Knot:         trefoil(),
		Perturbation: dto.Perturbation{Mood: 0.5, Energy: -0.2},
		Seed:         3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, k.Generation)
	assert.Equal(t, "2:1,1,1", k.PredecessorFingerprint)

	hot := 10.0
	st, err := env.engine.Stability(ctx, &dto.StabilityRequest{Knot: trefoil(), Temperature: &hot})
	require.NoError(t, err)
	assert.Equal(t, "2:1,1,1", st.Fingerprint)
	assert.Equal(t, 10.0, st.Temperature)

	st, err = env.engine.Stability(ctx, &dto.StabilityRequest{Knot: trefoil()})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTemperature, st.Temperature)
}

func TestEngine_Compatibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Compatibility(ctx, &dto.CompatibilityRequest{A: trefoil(), B: trefoil(), QuantumScore: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.IntegratedScore, 1e-12)
	assert.Nil(t, res.WeaveScore)

	weave, err := env.engine.Weave(ctx, &dto.WeaveRequest{
		Knots: []dto.KnotInput{
			trefoil(),
			{Braid: &dto.Braid{Strands: 2, Generators: []int{1, 1, 1, 1, 1}}},
			{Braid: &dto.Braid{Strands: 3, Generators: []int{1, -2, 1, -2}}},
		},
		QuantumScores: []float64{0.9, 0.9, 0.1},
	})
	require.NoError(t, err)
	require.NotNil(t, weave.WeaveScore)
}

func TestEngine_ErrorStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	zero := 0.0

	tests := []struct {
		name string
		call func() error
		code codes.Code
		text string
	}{
		{
			name: "validation",
			call: func() error {
				_, err := env.engine.Weave(ctx, &dto.WeaveRequest{Knots: []dto.KnotInput{trefoil()}, QuantumScores: []float64{1}})
				return err
			},
			code: codes.InvalidArgument,
			text: "knots must be at least 3",
		},
		{
			name: "invalid generator keeps index",
			call: func() error {
				_, err := env.engine.Compatibility(ctx, &dto.CompatibilityRequest{
					A: trefoil(), B: dto.KnotInput{Braid: &dto.Braid{Strands: 2, Generators: []int{4}}}, QuantumScore: 0.5,
				})
				return err
			},
			code: codes.InvalidArgument,
			text: "index=1",
		},
		{
			name: "unknown entity type",
			call: func() error {
				_, err := env.engine.BuildKnot(ctx, &dto.BuildKnotRequest{EntityType: "planet", Attributes: []float64{0.1, 0.2}})
				return err
			},
			code: codes.InvalidArgument,
			text: string(errors.ErrCodeInvalidEntityType),
		},
		{
			name: "invalid temperature",
			call: func() error {
				_, err := env.engine.Stability(ctx, &dto.StabilityRequest{Knot: trefoil(), Temperature: &zero})
				return err
			},
			code: codes.InvalidArgument,
			text: "temperature must be gt 0",
		},
		{
			name: "score out of range",
			call: func() error {
				_, err := env.engine.Compatibility(ctx, &dto.CompatibilityRequest{A: trefoil(), B: trefoil(), QuantumScore: 2})
				return err
			},
			code: codes.InvalidArgument,
			text: string(errors.ErrCodeOutOfRangeScore),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			st := status.Convert(err)
			assert.Equal(t, tt.code, st.Code())
			assert.Contains(t, st.Message(), tt.text)
		})
	}
	assert.True(t, env.logger.HasMessage("warn", "grpc request rejected"))
}

func TestEngine_Metrics(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Compatibility(context.Background(), &dto.CompatibilityRequest{A: trefoil(), B: trefoil(), QuantumScore: 0.5})
	require.NoError(t, err)

	n, err := promtest.GatherAndCount(env.collector.Registry(), "test_grpc_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.health.Check(ctx, &healthpb.HealthCheckRequest{Service: EngineServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	env.server.SetServing(false)
	resp, err = env.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	_, err = env.health.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown.Service"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_Lifecycle(t *testing.T) {
	srv := NewServer(config.GRPCConfig{})
	assert.Empty(t, srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()), "stop before start is a no-op")

	lis := bufconn.Listen(1024)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(lis) }()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	assert.Error(t, srv.Serve(bufconn.Listen(1024)), "double start")

	require.NoError(t, srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := recoveryUnaryInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + EngineServiceName + "/BuildKnot"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, logger.HasMessage("error", "grpc panic recovered"))
}

func TestStatusUnaryInterceptor_MasksUnclassified(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := statusUnaryInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + EngineServiceName + "/Weave"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, assert.AnError
	})
	st := status.Convert(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), string(errors.ErrCodeInternal))
	assert.NotContains(t, st.Message(), assert.AnError.Error())
	assert.True(t, logger.HasMessage("error", "unclassified grpc error"))

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, errors.CacheClosed("closed")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, context.DeadlineExceeded
	})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestSplitMethodName(t *testing.T) {
	svc, method := splitMethodName("/knotweave.v1.Engine/Weave")
	assert.Equal(t, "knotweave.v1.Engine", svc)
	assert.Equal(t, "Weave", method)

	svc, method = splitMethodName("bare")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "bare", method)

	assert.True(t, isHealthCheck("/grpc.health.v1.Health/Check"))
	assert.False(t, isHealthCheck("/knotweave.v1.Engine/Weave"))
}
