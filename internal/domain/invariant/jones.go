package invariant

import (
	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// loopValue is d = −A² − A⁻², the bracket value of one closed loop.
var loopValue = FromTerms([]Term{{Exponent: -2, Coefficient: -1}, {Exponent: 2, Coefficient: -1}})

// bracketResolver evaluates the Kauffman bracket of a braid closure by
// resolving crossings left to right.  A partial resolution is a planar
// pairing of the 2N endpoints of the processed prefix: points 0..N-1 sit on
// the top edge, N..2N-1 on the bottom edge.  Each level maps the distinct
// pairings reached after a prefix to their accumulated weight, so states
// reached through different smoothings are merged.  maxStates bounds the
// size of a single level.
type bracketResolver struct {
	strands   int
	gens      []braid.Generator
	maxStates int
	loopPow   []Polynomial
}

func newBracketResolver(w braid.Word, maxStates int) *bracketResolver {
	return &bracketResolver{
		strands:   w.Strands(),
		gens:      w.Generators(),
		maxStates: maxStates,
		loopPow:   []Polynomial{One()},
	}
}

// bracket returns ⟨β̂⟩ normalised so that the unknotted circle has value 1.
func (r *bracketResolver) bracket() (Polynomial, error) {
	match := make([]uint8, 2*r.strands)
	for k := 0; k < r.strands; k++ {
		match[k] = uint8(r.strands + k)
		match[r.strands+k] = uint8(k)
	}
	level := map[string]Polynomial{string(match): One()}

	for pos, g := range r.gens {
		next := make(map[string]Polynomial, 2*len(level))
		add := func(key string, p Polynomial) {
			next[key] = next[key].Add(p)
		}
		// σ ↦ A·1 + A⁻¹·e,  σ⁻¹ ↦ A⁻¹·1 + A·e
		shift := 1
		if g.Sign() < 0 {
			shift = -1
		}
		for key, weight := range level {
			add(key, weight.Shift(shift))
			turned, loop := r.cupCap([]uint8(key), g.Index())
			w := weight.Shift(-shift)
			if loop {
				w = w.Mul(loopValue)
			}
			add(string(turned), w)
		}
		for key, p := range next {
			if p.IsZero() {
				delete(next, key)
			}
		}
		if len(next) > r.maxStates {
			return Polynomial{}, errors.MalformedBraid("bracket resolution exceeded its state budget").
				WithDetailf("states=%d max_states=%d position=%d strands=%d", len(next), r.maxStates, pos, r.strands)
		}
		level = next
	}

	var out Polynomial
	for key, weight := range level {
		out = out.Add(weight.Mul(r.closure([]uint8(key))))
	}
	return out, nil
}

// cupCap composes the pairing with the Temperley–Lieb generator e_i, which
// caps bottom points i-1 and i and opens a fresh cup beneath them.  It
// reports whether the cap closed a loop.
func (r *bracketResolver) cupCap(match []uint8, index int) ([]uint8, bool) {
	next := make([]uint8, len(match))
	copy(next, match)
	b := uint8(r.strands + index - 1)
	c := b + 1
	p, q := next[b], next[c]
	if p == c {
		return next, true
	}
	next[p], next[q] = q, p
	next[b], next[c] = c, b
	return next, false
}

// closure joins top point k to bottom point N+k and returns d^(loops-1).
func (r *bracketResolver) closure(match []uint8) Polynomial {
	n := r.strands
	seen := make([]bool, 2*n)
	loops := 0
	for start := range seen {
		if seen[start] {
			continue
		}
		loops++
		for v := start; !seen[v]; {
			seen[v] = true
			u := int(match[v])
			seen[u] = true
			if u < n {
				v = u + n
			} else {
				v = u - n
			}
		}
	}
	return r.loopPower(loops - 1)
}

func (r *bracketResolver) loopPower(k int) Polynomial {
	for len(r.loopPow) <= k {
		r.loopPow = append(r.loopPow, r.loopPow[len(r.loopPow)-1].Mul(loopValue))
	}
	return r.loopPow[k]
}

// jones returns the Jones polynomial of the closure of w in the variable A:
// f(A) = (−A³)^(−writhe)·⟨β̂⟩.  The identity braid on N strands closes to the
// N-component unlink, d^(N-1).
func jones(w braid.Word, maxStates int) (Polynomial, error) {
	b, err := newBracketResolver(w, maxStates).bracket()
	if err != nil {
		return Polynomial{}, err
	}
	writhe := w.Writhe()
	out := b.Shift(-3 * writhe)
	if writhe%2 != 0 {
		out = out.Neg()
	}
	return out, nil
}
