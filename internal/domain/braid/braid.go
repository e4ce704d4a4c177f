// Package braid implements braid words over a fixed strand count: validated
// construction, composition, inversion and deterministic free reduction.
// A Word is an immutable value; every operation returns a new Word.
package braid

import (
	"strconv"
	"strings"

	"github.com/turtacn/KnotWeave/pkg/errors"
)

// MinStrands is the smallest strand count that admits a generator.
const MinStrands = 2

// ─────────────────────────────────────────────────────────────────────────────
// Generator
// ─────────────────────────────────────────────────────────────────────────────

// Generator is a signed Artin generator.  Magnitude i means strands i and i+1
// (1-based) cross; a positive value is an over-crossing σ_i, a negative value
// the inverse σ_i⁻¹.
type Generator int

// Index returns the generator magnitude.
func (g Generator) Index() int {
	if g < 0 {
		return int(-g)
	}
	return int(g)
}

// Sign returns +1 or -1.
func (g Generator) Sign() int {
	if g < 0 {
		return -1
	}
	return 1
}

// Inverse returns the generator with the opposite crossing direction.
func (g Generator) Inverse() Generator { return -g }

// ─────────────────────────────────────────────────────────────────────────────
// Word
// ─────────────────────────────────────────────────────────────────────────────

// Word is an ordered sequence of generators over a fixed strand count.  The
// empty sequence is the identity braid.  The zero Word is not valid; build
// words with New or Identity.
type Word struct {
	strands int
	gens    []Generator
}

// New validates gens against strands and returns the Word.  It fails with
// KNOT_001 if strands < 2 or any magnitude is 0 or ≥ strands.
func New(strands int, gens []int) (Word, error) {
	out := make([]Generator, len(gens))
	for i, g := range gens {
		out[i] = Generator(g)
	}
	return FromGenerators(strands, out)
}

// FromGenerators is New for callers that already hold Generators.  The slice
// is copied.
func FromGenerators(strands int, gens []Generator) (Word, error) {
	if strands < MinStrands {
		return Word{}, errors.InvalidGenerator("strand count too small").
			WithDetailf("strands=%d min=%d", strands, MinStrands)
	}
	out := make([]Generator, len(gens))
	for i, g := range gens {
		if g == 0 || g.Index() >= strands {
			return Word{}, errors.InvalidGenerator("generator out of range").
				WithDetailf("position=%d generator=%d strands=%d", i, int(g), strands)
		}
		out[i] = g
	}
	return Word{strands: strands, gens: out}, nil
}

// Identity returns the empty word on strands strands.
func Identity(strands int) (Word, error) {
	return FromGenerators(strands, nil)
}

// MustNew is New that panics on error.  Tests and fixed tables only.
func MustNew(strands int, gens ...int) Word {
	w, err := New(strands, gens)
	if err != nil {
		panic(err)
	}
	return w
}

// Strands returns the strand count.
func (w Word) Strands() int { return w.strands }

// Len returns the number of generators.
func (w Word) Len() int { return len(w.gens) }

// IsIdentity reports whether the word is empty.
func (w Word) IsIdentity() bool { return len(w.gens) == 0 }

// At returns the generator at position i.
func (w Word) At(i int) Generator { return w.gens[i] }

// Generators returns a copy of the generator sequence.
func (w Word) Generators() []Generator {
	out := make([]Generator, len(w.gens))
	copy(out, w.gens)
	return out
}

// Ints returns the generator sequence as plain signed integers.
func (w Word) Ints() []int {
	out := make([]int, len(w.gens))
	for i, g := range w.gens {
		out[i] = int(g)
	}
	return out
}

// Equal reports whether both words have the same strand count and sequence.
func (w Word) Equal(o Word) bool {
	if w.strands != o.strands || len(w.gens) != len(o.gens) {
		return false
	}
	for i := range w.gens {
		if w.gens[i] != o.gens[i] {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Group operations
// ─────────────────────────────────────────────────────────────────────────────

// Compose returns w followed by o.  Both words must share a strand count.
func (w Word) Compose(o Word) (Word, error) {
	if w.strands != o.strands {
		return Word{}, errors.InvalidGenerator("cannot compose braids with different strand counts").
			WithDetailf("left=%d right=%d", w.strands, o.strands)
	}
	out := make([]Generator, 0, len(w.gens)+len(o.gens))
	out = append(out, w.gens...)
	out = append(out, o.gens...)
	return Word{strands: w.strands, gens: out}, nil
}

// Inverse reverses the word and negates each generator.
func (w Word) Inverse() Word {
	out := make([]Generator, len(w.gens))
	for i, g := range w.gens {
		out[len(w.gens)-1-i] = g.Inverse()
	}
	return Word{strands: w.strands, gens: out}
}

// Without returns the word with the crossing at position i removed.
func (w Word) Without(i int) Word {
	out := make([]Generator, 0, len(w.gens)-1)
	out = append(out, w.gens[:i]...)
	out = append(out, w.gens[i+1:]...)
	return Word{strands: w.strands, gens: out}
}

// Reduce cancels adjacent inverse pairs until none remain.  A word of length
// n never needs more than n/2 cancellations, so the budget cannot run out.
func (w Word) Reduce() Word {
	r, _ := w.ReduceWithBudget(len(w.gens) / 2)
	return r
}

// ReduceWithBudget scans left to right, cancels the first adjacent pair
// g·g⁻¹ and rescans, spending one unit of budget per cancellation.  It fails
// with KNOT_002 if a cancellation is still possible once the budget is spent.
//
// After a cancellation at i the scan resumes at i-1, which is the same as
// restarting from the left: the prefix before i-1 held no cancellable pair.
func (w Word) ReduceWithBudget(budget int) (Word, error) {
	out := make([]Generator, len(w.gens))
	copy(out, w.gens)

	used := 0
	for i := 0; i+1 < len(out); {
		if out[i] != -out[i+1] {
			i++
			continue
		}
		if used >= budget {
			return Word{}, errors.MalformedBraid("reduction budget exhausted").
				WithDetailf("budget=%d length=%d", budget, len(w.gens))
		}
		out = append(out[:i], out[i+2:]...)
		used++
		if i > 0 {
			i--
		}
	}
	return Word{strands: w.strands, gens: out}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Derived quantities
// ─────────────────────────────────────────────────────────────────────────────

// Writhe returns the sum of generator signs.
func (w Word) Writhe() int {
	s := 0
	for _, g := range w.gens {
		s += g.Sign()
	}
	return s
}

// Permutation returns the strand permutation induced by the word: the strand
// entering at position k leaves at position perm[k] (0-based).
func (w Word) Permutation() []int {
	at := make([]int, w.strands) // at[position] = strand
	for k := range at {
		at[k] = k
	}
	for _, g := range w.gens {
		i := g.Index() - 1
		at[i], at[i+1] = at[i+1], at[i]
	}
	perm := make([]int, w.strands)
	for pos, strand := range at {
		perm[strand] = pos
	}
	return perm
}

// Components returns the number of components of the braid closure, i.e. the
// number of cycles of its permutation.
func (w Word) Components() int {
	perm := w.Permutation()
	seen := make([]bool, len(perm))
	cycles := 0
	for k := range perm {
		if seen[k] {
			continue
		}
		cycles++
		for j := k; !seen[j]; j = perm[j] {
			seen[j] = true
		}
	}
	return cycles
}

// Fingerprint returns a canonical string for the word, stable across
// processes.  Format: "<strands>:<g1>,<g2>,...".
func (w Word) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(w.strands))
	sb.WriteByte(':')
	for i, g := range w.gens {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(g)))
	}
	return sb.String()
}

// String renders the word with σ notation, e.g. "σ1σ2⁻¹σ1".  The identity
// renders as "e".
func (w Word) String() string {
	if len(w.gens) == 0 {
		return "e"
	}
	var sb strings.Builder
	for _, g := range w.gens {
		sb.WriteString("σ")
		sb.WriteString(strconv.Itoa(g.Index()))
		if g < 0 {
			sb.WriteString("⁻¹")
		}
	}
	return sb.String()
}
