package compat

import (
	"context"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

func ptr(v float64) *float64 { return &v }

func build(t *testing.T, strands int, gens ...int) *knot.Knot {
	t.Helper()
	b, err := knot.NewBuilder(knot.DefaultBuilderConfig())
	require.NoError(t, err)
	k, err := b.Build(braid.MustNew(strands, gens...))
	require.NoError(t, err)
	return k
}

func TestIntegrate_Renormalisation(t *testing.T) {
	got, err := Integrate(0.8, 0.6, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.725, got, 1e-12)

	got, err = Integrate(0.8, 0.6, ptr(0.4))
	require.NoError(t, err)
	assert.InDelta(t, 0.66, got, 1e-12)

	got, err = Integrate(1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestIntegrate_OutOfRange(t *testing.T) {
	cases := []struct {
		name string
		q, t float64
		w    *float64
	}{
		{"quantum high", 1.01, 0.5, nil},
		{"topological negative", 0.5, -0.1, nil},
		{"weave high", 0.5, 0.5, ptr(2)},
		{"quantum NaN", math.NaN(), 0.5, nil},
		{"weave NaN", 0.5, 0.5, ptr(math.NaN())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Integrate(tc.q, tc.t, tc.w)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
		})
	}
}

func TestWeave_GeometricMean(t *testing.T) {
	w, err := Weave([]float64{0.9, 0.9, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, math.Cbrt(0.081), w, 1e-12)
	assert.InDelta(t, 0.448, w, 0.02)
	assert.Less(t, w, Mean([]float64{0.9, 0.9, 0.1}))

	w, err = Weave([]float64{0.5, 0, 0.9})
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)

	w, err = Weave([]float64{1, 1, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w, 1e-15)
}

func TestWeave_Errors(t *testing.T) {
	_, err := Weave([]float64{0.5, 0.5})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = Weave([]float64{0.5, 0.5, 1.5})
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
}

func TestSimilarities(t *testing.T) {
	assert.Equal(t, 1.0, IntegerSimilarity(0, 0))
	assert.Equal(t, 0.5, IntegerSimilarity(2, 4))
	assert.Equal(t, 0.0, IntegerSimilarity(-3, 3))
	assert.Equal(t, 0.0, IntegerSimilarity(0, 1))

	a := []invariant.Term{{Exponent: 0, Coefficient: 1}}
	b := []invariant.Term{{Exponent: 0, Coefficient: 2}}
	assert.Equal(t, 1.0, PolynomialSimilarity(a, a))
	assert.InDelta(t, 0.5, PolynomialSimilarity(a, b), 1e-12)
}

func TestBigSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, BigSimilarity(new(big.Int), new(big.Int)))
	assert.Equal(t, 0.5, BigSimilarity(big.NewInt(2), big.NewInt(4)))

	huge, ok := new(big.Int).SetString("12200160415121876738", 10)
	require.True(t, ok)
	near := new(big.Int).Add(huge, big.NewInt(1))
	assert.Less(t, BigSimilarity(huge, near), 1.0)
	assert.Greater(t, BigSimilarity(huge, near), 0.999999)
	assert.Equal(t, BigSimilarity(huge, near), BigSimilarity(near, huge))
}

func TestArfSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, ArfSimilarity(1, 1))
	assert.Equal(t, 0.0, ArfSimilarity(0, 1))
	assert.Equal(t, 0.5, ArfSimilarity(invariant.ArfUndefined, 0))
	assert.Equal(t, 1.0, ArfSimilarity(invariant.ArfUndefined, invariant.ArfUndefined))
}

func TestTopologicalWeightsSumToOne(t *testing.T) {
	sum := WeightJones + WeightAlexander + WeightCrossing + WeightWrithe +
		WeightSignature + WeightUnknotting + WeightBridge + WeightBraidIndex +
		WeightDeterminant + WeightArf + WeightComponents
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestTopological_SeparatesMirrors(t *testing.T) {
	right := build(t, 2, 1, 1, 1)
	left := build(t, 2, -1, -1, -1)
	require.Equal(t, -2, right.Signature())
	require.Equal(t, 2, left.Signature())

	// Same Alexander polynomial, determinant, Arf and bounds; the chirality
	// shows up in Jones, writhe and signature only.
	got := Topological(right, left)
	assert.Less(t, got, 1-WeightSignature)
	assert.Greater(t, got, WeightAlexander+WeightDeterminant+WeightArf)
}

func TestTopological_SymmetricAndBounded(t *testing.T) {
	knots := []*knot.Knot{
		build(t, 2, 1, 1, 1),
		build(t, 3, 1, -2, 1, -2),
		build(t, 4, 1, 2, 3),
		build(t, 5),
		build(t, 3, -1, -1, 2, -1),
	}
	for i := range knots {
		assert.InDelta(t, 1.0, Topological(knots[i], knots[i]), 1e-12)
		for j := range knots {
			ab := Topological(knots[i], knots[j])
			ba := Topological(knots[j], knots[i])
			assert.Equal(t, ab, ba, "pair (%d,%d)", i, j)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	}
}

func TestPair(t *testing.T) {
	a, b := build(t, 2, 1, 1, 1), build(t, 3, 1, -2, 1, -2)
	r, err := Pair(a, b, 0.8)
	require.NoError(t, err)
	assert.Nil(t, r.WeaveScore)
	want, err := Integrate(0.8, Topological(a, b), nil)
	require.NoError(t, err)
	assert.Equal(t, want, r.IntegratedScore)

	_, err = Pair(a, b, -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
}

func TestResultClone(t *testing.T) {
	r, err := NewResult(0.5, 0.5, ptr(0.5))
	require.NoError(t, err)
	c := r.Clone()
	*c.WeaveScore = 0.9
	assert.Equal(t, 0.5, *r.WeaveScore)
}

func TestPairwise_CanonicalOrder(t *testing.T) {
	knots := []*knot.Knot{
		build(t, 2, 1, 1, 1),
		build(t, 3, 1, -2, 1, -2),
		build(t, 4, 1, 2, 3),
		build(t, 2, 1),
	}
	got, err := Pairwise(context.Background(), knots, 2)
	require.NoError(t, err)
	require.Len(t, got, PairCount(4))

	idx := 0
	for i := 0; i < len(knots); i++ {
		for j := i + 1; j < len(knots); j++ {
			assert.Equal(t, Topological(knots[i], knots[j]), got[idx])
			idx++
		}
	}
}

func TestPairwise_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Pairwise(ctx, []*knot.Knot{build(t, 2, 1), build(t, 2, 1), build(t, 2, 1)}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroup(t *testing.T) {
	knots := []*knot.Knot{
		build(t, 2, 1, 1, 1),
		build(t, 3, 1, -2, 1, -2),
		build(t, 2, 1, 1, 1, 1, 1),
	}
	quantum := []float64{0.9, 0.6, 0.3}
	r, err := Group(context.Background(), knots, quantum, 0)
	require.NoError(t, err)

	scores, err := Pairwise(context.Background(), knots, 1)
	require.NoError(t, err)
	weave, err := Weave(scores)
	require.NoError(t, err)

	require.NotNil(t, r.WeaveScore)
	assert.InDelta(t, 0.6, r.QuantumScore, 1e-12)
	assert.InDelta(t, Mean(scores), r.TopologicalScore, 1e-12)
	assert.InDelta(t, weave, *r.WeaveScore, 1e-12)
	assert.InDelta(t, 0.5*0.6+0.3*Mean(scores)+0.2*weave, r.IntegratedScore, 1e-12)
}

func TestGroup_Errors(t *testing.T) {
	two := []*knot.Knot{build(t, 2, 1), build(t, 2, 1)}
	_, err := Group(context.Background(), two, []float64{0.5}, 0)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	three := append(two, build(t, 2, 1, 1, 1))
	_, err = Group(context.Background(), three, []float64{0.5, 0.5}, 0)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = Group(context.Background(), three, []float64{0.5, 0.5, 7}, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutOfRangeScore))
}
