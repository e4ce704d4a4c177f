package knot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/internal/domain/statmech"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(DefaultBuilderConfig())
	require.NoError(t, err)
	return b
}

func TestNewBuilder_Validation(t *testing.T) {
	cfg := DefaultBuilderConfig()
	cfg.Temperature = 0
	_, err := NewBuilder(cfg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

	cfg = DefaultBuilderConfig()
	cfg.Reference = statmech.Reference{Min: 3, Max: 3}
	_, err = NewBuilder(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestBuild_Trefoil(t *testing.T) {
	b := newBuilder(t)
	k, err := b.Build(braid.MustNew(2, 1, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, uint32(3), k.CrossingNumber())
	assert.Equal(t, int32(3), k.Writhe())
	assert.Equal(t, int64(3), k.Determinant().Int64())
	assert.Equal(t, -2, k.Signature())
	assert.Equal(t, 1, k.UnknottingBound())
	assert.Equal(t, 2, k.BridgeBound())
	assert.Equal(t, 1, k.Arf())
	assert.Equal(t, 1, k.Components())
	assert.Equal(t, 2, k.BraidIndex())
	assert.Equal(t, 2, k.Strands())
	assert.Equal(t, []invariant.Term{{Exponent: 0, Coefficient: 1}, {Exponent: 1, Coefficient: -1}, {Exponent: 2, Coefficient: 1}}, k.Alexander())
	assert.Len(t, k.Jones(), 3)
	assert.InDelta(t, 4.5, k.Energy(), 1e-12)
	assert.InDelta(t, k.Energy()-k.Entropy(), k.FreeEnergy(), 1e-12)
	assert.GreaterOrEqual(t, k.Stability(), 0.0)
	assert.LessOrEqual(t, k.Stability(), 1.0)
	assert.Nil(t, k.Predecessor())
	assert.Equal(t, 0, k.Generation())
	assert.Equal(t, "2:1,1,1", k.Fingerprint())
}

func TestBuild_StoresReducedWord(t *testing.T) {
	k, err := newBuilder(t).Build(braid.MustNew(3, 2, 1, -1, -2, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, k.Word().Ints())
	assert.Equal(t, uint32(1), k.CrossingNumber())
}

func TestBuild_Identity(t *testing.T) {
	k, err := newBuilder(t).Build(braid.MustNew(4))
	require.NoError(t, err)
	assert.Equal(t, 0.0, k.Energy())
	assert.Equal(t, 0.0, k.Entropy())
	assert.Equal(t, 1.0, k.Stability())
	assert.Equal(t, 4, k.Components())
	assert.Empty(t, k.Alexander())
}

func TestBuild_CeilingError(t *testing.T) {
	cfg := DefaultBuilderConfig()
	cfg.CrossingCeiling = 2
	b, err := NewBuilder(cfg)
	require.NoError(t, err)

	_, err = b.Build(braid.MustNew(2, 1, 1, 1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMalformedBraid, errors.GetCode(err))
}

func TestAccessorsReturnCopies(t *testing.T) {
	k, err := newBuilder(t).Build(braid.MustNew(2, 1, 1, 1))
	require.NoError(t, err)

	j := k.Jones()
	j[0].Coefficient = 99
	assert.NotEqual(t, 99.0, k.Jones()[0].Coefficient)

	inv := k.Invariants()
	inv.Alexander[0].Coefficient = 42
	assert.Equal(t, 1.0, k.Alexander()[0].Coefficient)
	inv.Determinant.SetInt64(7)
	k.Determinant().SetInt64(9)
	assert.Equal(t, int64(3), k.Determinant().Int64())

	gens := k.Word().Generators()
	gens[0] = -1
	assert.Equal(t, []int{1, 1, 1}, k.Word().Ints())
}

func TestDerive_LinksLineage(t *testing.T) {
	b := newBuilder(t)
	parent, err := b.Build(braid.MustNew(3, 1, 2))
	require.NoError(t, err)
	child, err := b.Derive(parent, braid.MustNew(3, 1, -2, 1))
	require.NoError(t, err)
	grandchild, err := b.Derive(child, braid.MustNew(3, 1))
	require.NoError(t, err)

	assert.Same(t, parent, child.Predecessor())
	assert.Same(t, child, grandchild.Predecessor())
	assert.Equal(t, 2, grandchild.Generation())
}

func TestStability_DecreasesWithComplexity(t *testing.T) {
	b := newBuilder(t)
	simple, err := b.Build(braid.MustNew(4, 1))
	require.NoError(t, err)
	tangled, err := b.Build(braid.MustNew(4, 1, -2, 3, -1, 2, -3, 1, -2, 3, -1, 2, -3))
	require.NoError(t, err)
	assert.Greater(t, simple.Stability(), tangled.Stability())
}

func TestEnsembleAt(t *testing.T) {
	b := newBuilder(t)
	w := braid.MustNew(2, 1, 1, 1)

	_, err := b.EnsembleAt(w, -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

	hot, err := b.EnsembleAt(w, 100)
	require.NoError(t, err)
	// at high temperature the four states approach a uniform ensemble
	assert.InDelta(t, math.Log(4), hot.Entropy, 0.01)
}
