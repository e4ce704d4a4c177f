package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

func setup(t *testing.T) (*Evolver, *knot.Builder) {
	t.Helper()
	b, err := knot.NewBuilder(knot.DefaultBuilderConfig())
	require.NoError(t, err)
	return NewEvolver(b, DefaultRates()), b
}

func TestPerturbation_Validate(t *testing.T) {
	assert.NoError(t, Perturbation{Mood: 1, Energy: -1, Stress: 0}.Validate())

	for _, p := range []Perturbation{
		{Mood: 1.1},
		{Energy: -1.0001},
		{Stress: math.NaN()},
	} {
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
	}
}

func TestPerturbation_Magnitude(t *testing.T) {
	assert.Equal(t, 0.0, Perturbation{}.Magnitude())
	assert.InDelta(t, 1.0, Perturbation{Mood: 1, Energy: -1, Stress: 1}.Magnitude(), 1e-12)
	assert.InDelta(t, 1/math.Sqrt(3), Perturbation{Stress: 1}.Magnitude(), 1e-12)
}

func TestEvolve_SameSeedSameResult(t *testing.T) {
	ev, b := setup(t)
	k, err := b.Build(braid.MustNew(5, 1, -2, 3, 4, -1, 2))
	require.NoError(t, err)
	p := Perturbation{Mood: 0.4, Energy: -0.7, Stress: 0.9}

	a, err := ev.EvolveSteps(k, p, 5, NewRand(42))
	require.NoError(t, err)
	c, err := ev.EvolveSteps(k, p, 5, NewRand(42))
	require.NoError(t, err)

	assert.True(t, a.Word().Equal(c.Word()))
	assert.Equal(t, a.Jones(), c.Jones())
	assert.Equal(t, a.Stability(), c.Stability())
	assert.Equal(t, 5, a.Generation())
}

func TestNewRand_ZeroSeedMatchesOne(t *testing.T) {
	a, b := NewRand(0), NewRand(1)
	for i := 0; i < 16; i++ {
		assert.Equal(t, b.Int63(), a.Int63())
	}
}

func TestEvolve_DoesNotMutateInput(t *testing.T) {
	ev, b := setup(t)
	k, err := b.Build(braid.MustNew(4, 1, 2, 3, -2))
	require.NoError(t, err)
	before := k.Word().Ints()
	beforeJones := k.Jones()

	for seed := int64(0); seed < 20; seed++ {
		_, err := ev.Evolve(k, Perturbation{Mood: -1, Energy: 1, Stress: 1}, NewRand(seed))
		require.NoError(t, err)
	}
	assert.Equal(t, before, k.Word().Ints())
	assert.Equal(t, beforeJones, k.Jones())
	assert.Equal(t, 0, k.Generation())
}

func TestEvolve_ZeroPerturbationKeepsWord(t *testing.T) {
	ev, b := setup(t)
	k, err := b.Build(braid.MustNew(3, 1, 2, 1))
	require.NoError(t, err)

	next, err := ev.Evolve(k, Perturbation{}, NewRand(7))
	require.NoError(t, err)
	assert.True(t, k.Word().Equal(next.Word()))
	assert.Same(t, k, next.Predecessor())
	assert.Equal(t, 1, next.Generation())
}

func TestEvolve_FullStressGrowsWithMoodSign(t *testing.T) {
	b, err := knot.NewBuilder(knot.DefaultBuilderConfig())
	require.NoError(t, err)
	// growth certain, no flips or shifts
	ev := NewEvolver(b, Rates{Growth: 1})
	k, err := b.Build(braid.MustNew(3))
	require.NoError(t, err)

	up, err := ev.Evolve(k, Perturbation{Mood: 0.5, Stress: 1}, NewRand(3))
	require.NoError(t, err)
	require.Equal(t, 1, up.Word().Len())
	assert.Equal(t, 1, up.Word().At(0).Sign())

	down, err := ev.Evolve(k, Perturbation{Mood: -0.5, Stress: 1}, NewRand(3))
	require.NoError(t, err)
	require.Equal(t, 1, down.Word().Len())
	assert.Equal(t, -1, down.Word().At(0).Sign())
}

func TestEvolve_ShiftStaysInRange(t *testing.T) {
	b, err := knot.NewBuilder(knot.DefaultBuilderConfig())
	require.NoError(t, err)
	ev := NewEvolver(b, Rates{Shift: 1})
	k, err := b.Build(braid.MustNew(3, 1, 2, 1, 2))
	require.NoError(t, err)

	rng := NewRand(11)
	for i := 0; i < 50; i++ {
		next, err := ev.Evolve(k, Perturbation{Mood: 1, Energy: 1, Stress: 1}, rng)
		require.NoError(t, err)
		for _, g := range next.Word().Generators() {
			assert.GreaterOrEqual(t, g.Index(), 1)
			assert.LessOrEqual(t, g.Index(), 2)
		}
	}
}

func TestEvolve_Errors(t *testing.T) {
	ev, b := setup(t)
	k, err := b.Build(braid.MustNew(2, 1))
	require.NoError(t, err)

	_, err = ev.Evolve(k, Perturbation{Stress: 2}, NewRand(1))
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))

	_, err = ev.Evolve(k, Perturbation{}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	same, err := ev.EvolveSteps(k, Perturbation{}, 0, NewRand(1))
	require.NoError(t, err)
	assert.Same(t, k, same)
}

func TestNewRand_ZeroSeed(t *testing.T) {
	assert.Equal(t, NewRand(1).Int63(), NewRand(0).Int63())
}
