package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/compat"
	"github.com/turtacn/KnotWeave/internal/domain/dynamics"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/internal/domain/statmech"
	"github.com/turtacn/KnotWeave/internal/infrastructure/cache"
	"github.com/turtacn/KnotWeave/pkg/types/common"
)

// MockService is a testify mock of matching.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) BuildKnot(ctx context.Context, attrs []float64, et common.EntityType) (*knot.Knot, error) {
	args := m.Called(ctx, attrs, et)
	k, _ := args.Get(0).(*knot.Knot)
	return k, args.Error(1)
}

func (m *MockService) BuildRecord(ctx context.Context, entityID string, attrs []float64, et common.EntityType) (knot.EntityKnotRecord, error) {
	args := m.Called(ctx, entityID, attrs, et)
	return args.Get(0).(knot.EntityKnotRecord), args.Error(1)
}

func (m *MockService) BuildFromWord(ctx context.Context, w braid.Word) (*knot.Knot, error) {
	args := m.Called(ctx, w)
	k, _ := args.Get(0).(*knot.Knot)
	return k, args.Error(1)
}

func (m *MockService) EvolveKnot(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64) (*knot.Knot, error) {
	args := m.Called(ctx, k, p, seed)
	out, _ := args.Get(0).(*knot.Knot)
	return out, args.Error(1)
}

func (m *MockService) EvolveKnotSteps(ctx context.Context, k *knot.Knot, p dynamics.Perturbation, seed int64, steps int) (*knot.Knot, error) {
	args := m.Called(ctx, k, p, seed, steps)
	out, _ := args.Get(0).(*knot.Knot)
	return out, args.Error(1)
}

func (m *MockService) Compatibility(ctx context.Context, a, b *knot.Knot, quantum float64) (compat.Result, error) {
	args := m.Called(ctx, a, b, quantum)
	return args.Get(0).(compat.Result), args.Error(1)
}

func (m *MockService) WeaveCompatibility(ctx context.Context, knots []*knot.Knot, quantum []float64) (compat.Result, error) {
	args := m.Called(ctx, knots, quantum)
	return args.Get(0).(compat.Result), args.Error(1)
}

func (m *MockService) Stability(ctx context.Context, k *knot.Knot) (float64, error) {
	args := m.Called(ctx, k)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockService) StabilityAt(ctx context.Context, k *knot.Knot, temperature float64) (statmech.Ensemble, error) {
	args := m.Called(ctx, k, temperature)
	return args.Get(0).(statmech.Ensemble), args.Error(1)
}

func (m *MockService) Temperature() float64 {
	return m.Called().Get(0).(float64)
}

func (m *MockService) CacheStats() map[string]cache.Stats {
	return m.Called().Get(0).(map[string]cache.Stats)
}

func (m *MockService) Start(ctx context.Context) { m.Called(ctx) }
func (m *MockService) Close()                    { m.Called() }
