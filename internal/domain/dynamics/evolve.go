// Package dynamics evolves knots under bounded external perturbations.
// Every random draw comes from a caller-supplied *rand.Rand, so a fixed seed
// reproduces an evolution exactly.
package dynamics

import (
	"math"
	"math/rand"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// Perturbation is an external influence on a knot.  Each component lies in
// [-1, 1].
type Perturbation struct {
	Mood   float64 `json:"mood"`
	Energy float64 `json:"energy"`
	Stress float64 `json:"stress"`
}

// Validate rejects NaN and components outside [-1, 1].
func (p Perturbation) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{{"mood", p.Mood}, {"energy", p.Energy}, {"stress", p.Stress}} {
		if math.IsNaN(c.v) || c.v < -1 || c.v > 1 {
			return errors.OutOfRange("perturbation component outside [-1, 1]").
				WithDetailf("%s=%g", c.name, c.v)
		}
	}
	return nil
}

// Magnitude returns ‖p‖/√3, which lies in [0, 1] for a valid perturbation.
func (p Perturbation) Magnitude() float64 {
	return math.Sqrt(p.Mood*p.Mood+p.Energy*p.Energy+p.Stress*p.Stress) / math.Sqrt(3)
}

// Rates scale how strongly a perturbation of magnitude 1 rewrites a word.
type Rates struct {
	Flip   float64
	Shift  float64
	Growth float64
}

// DefaultRates returns flip 0.5, shift 0.25, growth 0.25.
func DefaultRates() Rates {
	return Rates{Flip: 0.5, Shift: 0.25, Growth: 0.25}
}

// NewRand returns a deterministic source for seed.  Seed 0 is mapped to 1.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}

// Evolver rewrites knots and rebuilds their invariants.
type Evolver struct {
	builder *knot.Builder
	rates   Rates
}

// NewEvolver returns an Evolver that rebuilds knots with b.
func NewEvolver(b *knot.Builder, rates Rates) *Evolver {
	return &Evolver{builder: b, rates: rates}
}

// Evolve returns a new knot derived from k under p.  k is not modified.
//
// Per crossing, in order: the sign flips with probability m·Flip, then the
// index moves by ±1 (clamped to [1, N-1]) with probability m·Shift, where m
// is p.Magnitude().  When p.Stress > 0 one crossing whose sign follows
// p.Mood is appended with probability Stress·Growth.  The word is then
// reduced and rebuilt, and the result records k as its predecessor.
func (e *Evolver) Evolve(k *knot.Knot, p Perturbation, rng *rand.Rand) (*knot.Knot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.InvalidParam("evolve requires a random source")
	}
	strands := k.Strands()
	m := p.Magnitude()
	gens := k.Word().Generators()

	for i, g := range gens {
		if rng.Float64() < m*e.rates.Flip {
			g = g.Inverse()
		}
		if rng.Float64() < m*e.rates.Shift {
			idx := g.Index() + 1
			if rng.Intn(2) == 0 {
				idx = g.Index() - 1
			}
			idx = max(1, min(strands-1, idx))
			g = braid.Generator(g.Sign() * idx)
		}
		gens[i] = g
	}

	if p.Stress > 0 && rng.Float64() < p.Stress*e.rates.Growth {
		idx := rng.Intn(strands-1) + 1
		if p.Mood < 0 {
			idx = -idx
		}
		gens = append(gens, braid.Generator(idx))
	}

	w, err := braid.FromGenerators(strands, gens)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "evolved word is invalid")
	}
	return e.builder.Derive(k, w)
}

// EvolveSteps applies Evolve steps times, feeding each result into the next
// step.  steps ≤ 0 returns k unchanged.
func (e *Evolver) EvolveSteps(k *knot.Knot, p Perturbation, steps int, rng *rand.Rand) (*knot.Knot, error) {
	cur := k
	for i := 0; i < steps; i++ {
		next, err := e.Evolve(cur, p, rng)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
