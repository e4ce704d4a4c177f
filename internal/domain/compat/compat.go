// Package compat scores the compatibility of knots and integrates the
// topological signal with an externally supplied quantum score.
package compat

import (
	"math"
	"math/big"

	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// Topological similarity weights.  They sum to 1.
const (
	WeightJones       = 0.18
	WeightAlexander   = 0.18
	WeightCrossing    = 0.08
	WeightWrithe      = 0.05
	WeightSignature   = 0.10
	WeightUnknotting  = 0.08
	WeightBridge      = 0.08
	WeightBraidIndex  = 0.08
	WeightDeterminant = 0.07
	WeightArf         = 0.05
	WeightComponents  = 0.05
)

// Integration weights with and without a weave signal.
const (
	QuantumWeight     = 0.5
	TopologicalWeight = 0.3
	WeaveWeight       = 0.2

	QuantumWeightPair     = 0.625
	TopologicalWeightPair = 0.375
)

// MinWeaveScores is the smallest number of pairwise scores a weave needs.
const MinWeaveScores = 3

// IntegerSimilarity returns 1 − |a−b| / max(|a|, |b|, 1).
func IntegerSimilarity(a, b float64) float64 {
	scale := math.Max(math.Max(math.Abs(a), math.Abs(b)), 1)
	return clamp01(1 - math.Abs(a-b)/scale)
}

// BigSimilarity is IntegerSimilarity for arbitrary-precision integers.
func BigSimilarity(a, b *big.Int) float64 {
	scale := new(big.Int).Abs(a)
	if bb := new(big.Int).Abs(b); bb.Cmp(scale) > 0 {
		scale = bb
	}
	if scale.Sign() == 0 {
		return 1
	}
	diff := new(big.Int).Sub(a, b)
	ratio, _ := new(big.Rat).SetFrac(diff.Abs(diff), scale).Float64()
	return clamp01(1 - ratio)
}

// ArfSimilarity is 1 for equal Arf invariants, 0 for different ones and
// 0.5 when exactly one side is a link.
func ArfSimilarity(a, b int) float64 {
	switch {
	case a == b:
		return 1
	case a == invariant.ArfUndefined || b == invariant.ArfUndefined:
		return 0.5
	default:
		return 0
	}
}

// PolynomialSimilarity returns 1 − d/(1+d) for the L2 coefficient distance d.
func PolynomialSimilarity(a, b []invariant.Term) float64 {
	d := invariant.Distance(a, b)
	return clamp01(1 - d/(1+d))
}

// Topological returns the weighted invariant similarity of a and b in [0,1].
// Every term is symmetric and the terms are summed in a fixed order, so
// Topological(a, b) == Topological(b, a) exactly.
func Topological(a, b *knot.Knot) float64 {
	s := WeightJones * PolynomialSimilarity(a.Jones(), b.Jones())
	s += WeightAlexander * PolynomialSimilarity(a.Alexander(), b.Alexander())
	s += WeightCrossing * IntegerSimilarity(float64(a.CrossingNumber()), float64(b.CrossingNumber()))
	s += WeightWrithe * IntegerSimilarity(float64(a.Writhe()), float64(b.Writhe()))
	s += WeightSignature * IntegerSimilarity(float64(a.Signature()), float64(b.Signature()))
	s += WeightUnknotting * IntegerSimilarity(float64(a.UnknottingBound()), float64(b.UnknottingBound()))
	s += WeightBridge * IntegerSimilarity(float64(a.BridgeBound()), float64(b.BridgeBound()))
	s += WeightBraidIndex * IntegerSimilarity(float64(a.BraidIndex()), float64(b.BraidIndex()))
	s += WeightDeterminant * BigSimilarity(a.Determinant(), b.Determinant())
	s += WeightArf * ArfSimilarity(a.Arf(), b.Arf())
	s += WeightComponents * IntegerSimilarity(float64(a.Components()), float64(b.Components()))
	return clamp01(s)
}

func checkScore(name string, v float64) *errors.AppError {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errors.OutOfRange("score outside [0, 1]").WithDetailf("%s=%g", name, v)
	}
	return nil
}

// Integrate combines the three signals into one score:
//
//	with weave:    0.5·q + 0.3·t + 0.2·w
//	without weave: 0.625·q + 0.375·t
//
// Every present input must lie in [0,1].
func Integrate(quantum, topological float64, weave *float64) (float64, error) {
	if err := checkScore("quantum", quantum); err != nil {
		return 0, err
	}
	if err := checkScore("topological", topological); err != nil {
		return 0, err
	}
	if weave == nil {
		return clamp01(QuantumWeightPair*quantum + TopologicalWeightPair*topological), nil
	}
	if err := checkScore("weave", *weave); err != nil {
		return 0, err
	}
	return clamp01(QuantumWeight*quantum + TopologicalWeight*topological + WeaveWeight*(*weave)), nil
}

// Weave returns the geometric mean of pairwise scores, computed in log
// space.  Any zero score yields 0.
func Weave(scores []float64) (float64, error) {
	if len(scores) < MinWeaveScores {
		return 0, errors.InvalidParam("weave needs at least three pairwise scores").
			WithDetailf("got=%d", len(scores))
	}
	sum := 0.0
	zero := false
	for i, s := range scores {
		if err := checkScore("pairwise", s); err != nil {
			return 0, err.WithDetailf("index=%d value=%g", i, s)
		}
		if s == 0 {
			zero = true
			continue
		}
		sum += math.Log(s)
	}
	if zero {
		return 0, nil
	}
	return clamp01(math.Exp(sum / float64(len(scores)))), nil
}

// Mean returns the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
