package statmech

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/pkg/errors"
)

func TestTemperatureValidation(t *testing.T) {
	for _, temp := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Boltzmann(1, temp)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

		_, err = PartitionFunction([]float64{1}, temp)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

		_, err = Distribution([]float64{1}, temp)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

		_, err = FreeEnergy(1, temp, 0)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))

		_, err = Evaluate(1, nil, 3, temp, DefaultReference)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemperature))
	}
}

func TestBoltzmannAndPartition(t *testing.T) {
	b, err := Boltzmann(2, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-2), b, 1e-15)

	z, err := PartitionFunction([]float64{0, 1, 2}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1+math.Exp(-0.5)+math.Exp(-1), z, 1e-12)
}

func TestDistribution(t *testing.T) {
	ps, err := Distribution([]float64{1, 1, 1, 1}, 1)
	require.NoError(t, err)
	for _, p := range ps {
		assert.InDelta(t, 0.25, p, 1e-12)
	}

	// large energies must not underflow
	ps, err = Distribution([]float64{5000, 5001}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-1)), ps[0], 1e-12)
	assert.InDelta(t, 1.0, ps[0]+ps[1], 1e-12)

	ps, err = Distribution(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, 0.0, Entropy([]float64{1}))
	assert.InDelta(t, math.Log(4), Entropy([]float64{0.25, 0.25, 0.25, 0.25}), 1e-12)
	assert.Equal(t, 0.0, Entropy([]float64{1, 1e-11}))
}

func TestStability(t *testing.T) {
	ref := Reference{Min: 0, Max: 15}
	assert.Equal(t, 1.0, Stability(0, 2, ref))
	assert.Equal(t, 1.0, Stability(-5, 2, ref))
	assert.Equal(t, 0.0, Stability(100, 2, ref))
	assert.InDelta(t, 0.5, Stability(15, 3, ref), 1e-12)

	// a degenerate reference falls back to the default range
	assert.InDelta(t, 0.5, Stability(7.5, 2, Reference{Min: 1, Max: 1}), 1e-12)
}

func TestStability_MonotoneInFreeEnergy(t *testing.T) {
	prev := math.Inf(1)
	for f := -10.0; f <= 60; f += 0.5 {
		s := Stability(f, 4, DefaultReference)
		assert.LessOrEqual(t, s, prev)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		prev = s
	}
}

func TestEvaluate(t *testing.T) {
	e, err := Evaluate(3, []float64{3, 3, 3}, 2, 1, DefaultReference)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(4), e.Entropy, 1e-12)
	assert.InDelta(t, 3-math.Log(4), e.FreeEnergy, 1e-12)
	assert.InDelta(t, 1-(3-math.Log(4))/15, e.Stability, 1e-12)

	// the identity has no neighbourhood and a single zero-energy state
	e, err = Evaluate(0, nil, 5, 1, DefaultReference)
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Entropy)
	assert.Equal(t, 1.0, e.Stability)
}
