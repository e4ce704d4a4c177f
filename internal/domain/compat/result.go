package compat

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// Result is the outcome of one compatibility evaluation.  IntegratedScore is
// always Integrate(QuantumScore, TopologicalScore, WeaveScore).
type Result struct {
	QuantumScore     float64  `json:"quantum_score"`
	TopologicalScore float64  `json:"topological_score"`
	WeaveScore       *float64 `json:"weave_score,omitempty"`
	IntegratedScore  float64  `json:"integrated_score"`
}

// NewResult validates the inputs and integrates them.
func NewResult(quantum, topological float64, weave *float64) (Result, error) {
	integrated, err := Integrate(quantum, topological, weave)
	if err != nil {
		return Result{}, err
	}
	r := Result{QuantumScore: quantum, TopologicalScore: topological, IntegratedScore: integrated}
	if weave != nil {
		w := *weave
		r.WeaveScore = &w
	}
	return r, nil
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	if r.WeaveScore != nil {
		w := *r.WeaveScore
		r.WeaveScore = &w
	}
	return r
}

// Pair evaluates two knots against an external quantum score.
func Pair(a, b *knot.Knot, quantum float64) (Result, error) {
	return NewResult(quantum, Topological(a, b), nil)
}

// PairCount returns n(n−1)/2.
func PairCount(n int) int { return n * (n - 1) / 2 }

// Pairwise returns Topological for every pair i<j, ordered (0,1), (0,2), …,
// (1,2), ….  Pairs are scored on at most workers goroutines; workers ≤ 0
// means runtime.NumCPU().
func Pairwise(ctx context.Context, knots []*knot.Knot, workers int) ([]float64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := len(knots)
	out := make([]float64, PairCount(n))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	idx := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			slot, a, b := idx, knots[i], knots[j]
			idx++
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[slot] = Topological(a, b)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Group evaluates three or more knots.  quantum holds one external score per
// pair in Pairwise order.  The quantum input is their mean, the topological
// input is the mean pairwise score and the weave input is the geometric
// mean of the pairwise scores.
func Group(ctx context.Context, knots []*knot.Knot, quantum []float64, workers int) (Result, error) {
	if len(knots) < MinWeaveScores {
		return Result{}, errors.InvalidParam("weave needs at least three knots").
			WithDetailf("got=%d", len(knots))
	}
	if want := PairCount(len(knots)); len(quantum) != want {
		return Result{}, errors.InvalidParam("one quantum score per knot pair is required").
			WithDetailf("knots=%d want=%d got=%d", len(knots), want, len(quantum))
	}
	for i, q := range quantum {
		if err := checkScore("quantum", q); err != nil {
			return Result{}, err.WithDetailf("index=%d value=%g", i, q)
		}
	}

	scores, err := Pairwise(ctx, knots, workers)
	if err != nil {
		return Result{}, err
	}
	weave, err := Weave(scores)
	if err != nil {
		return Result{}, err
	}
	return NewResult(clamp01(Mean(quantum)), clamp01(Mean(scores)), &weave)
}
