// Package invariant computes topological invariants of braid closures: the
// Jones polynomial through the Kauffman bracket, the Alexander polynomial
// through the reduced Burau representation, the signature through the
// Seifert form of the braid closure, and the small integer invariants
// derived from them.
package invariant

import (
	"math/big"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

const (
	// DefaultCrossingCeiling is the largest reduced crossing count accepted.
	DefaultCrossingCeiling = 128

	// DefaultMaxStates bounds the number of distinct pairings the bracket
	// resolver holds after any one crossing.  A level never exceeds the
	// Catalan number C(N), and C(12) = 208012 fits, so braids on up to 12
	// strands always resolve.
	DefaultMaxStates = 1 << 18

	// MaxStrands is the widest braid whose pairings fit the resolver's
	// byte-per-endpoint encoding.
	MaxStrands = 127
)

// Invariants is the full invariant set of one braid closure.
type Invariants struct {
	CrossingNumber uint32
	Writhe         int32
	// Jones is in the variable A; V(t) is recovered with A = t^(-1/4).
	Jones     []Term
	Alexander []Term
	// Determinant is |Δ(−1)|; alternating braids near the crossing ceiling
	// overflow int64.
	Determinant *big.Int
	Components  int
	BraidIndex  int
	// Signature is the signature of the symmetrised Seifert form.
	Signature int
	// UnknottingBound is ⌈|Signature|/2⌉, a lower bound on the unknotting
	// number.
	UnknottingBound int
	// BridgeBound is an upper bound on the bridge number.
	BridgeBound int
	// Arf is 0 or 1 for knots and ArfUndefined for links.
	Arf int
}

// Calculator computes Invariants.  The zero value uses the defaults.
type Calculator struct {
	CrossingCeiling int
	MaxStates       int
}

// NewCalculator returns a Calculator with the given limits; non-positive
// values select the defaults.
func NewCalculator(crossingCeiling, maxStates int) *Calculator {
	return &Calculator{CrossingCeiling: crossingCeiling, MaxStates: maxStates}
}

func (c *Calculator) ceiling() int {
	if c == nil || c.CrossingCeiling <= 0 {
		return DefaultCrossingCeiling
	}
	return c.CrossingCeiling
}

func (c *Calculator) maxStates() int {
	if c == nil || c.MaxStates <= 0 {
		return DefaultMaxStates
	}
	return c.MaxStates
}

// Prepare reduces w and checks it against the calculator's limits.
func (c *Calculator) Prepare(w braid.Word) (braid.Word, error) {
	if w.Strands() > MaxStrands {
		return braid.Word{}, errors.MalformedBraid("too many strands").
			WithDetailf("strands=%d max=%d", w.Strands(), MaxStrands)
	}
	reduced := w.Reduce()
	if reduced.Len() > c.ceiling() {
		return braid.Word{}, errors.MalformedBraid("crossing count exceeds ceiling").
			WithDetailf("crossings=%d ceiling=%d", reduced.Len(), c.ceiling())
	}
	return reduced, nil
}

// Compute returns every invariant of the closure of w.  w is reduced first.
func (c *Calculator) Compute(w braid.Word) (Invariants, error) {
	reduced, err := c.Prepare(w)
	if err != nil {
		return Invariants{}, err
	}
	j, err := jones(reduced, c.maxStates())
	if err != nil {
		return Invariants{}, err
	}
	a := alexander(reduced)
	det := determinantOf(a)
	sig := signature(reduced)
	return Invariants{
		CrossingNumber:  uint32(reduced.Len()),
		Writhe:          int32(reduced.Writhe()),
		Jones:           j.Terms(),
		Alexander:       a.Terms(),
		Determinant:     det,
		Components:      reduced.Components(),
		BraidIndex:      reduced.Strands(),
		Signature:       sig,
		UnknottingBound: unknottingBound(sig),
		BridgeBound:     bridgeBound(reduced),
		Arf:             arf(reduced.Components(), det),
	}, nil
}

// Jones returns the Jones polynomial of the closure of w.
func (c *Calculator) Jones(w braid.Word) ([]Term, error) {
	reduced, err := c.Prepare(w)
	if err != nil {
		return nil, err
	}
	j, err := jones(reduced, c.maxStates())
	if err != nil {
		return nil, err
	}
	return j.Terms(), nil
}

// Alexander returns the normalised Alexander polynomial of the closure of w.
func (c *Calculator) Alexander(w braid.Word) ([]Term, error) {
	reduced, err := c.Prepare(w)
	if err != nil {
		return nil, err
	}
	return alexander(reduced).Terms(), nil
}

// CrossingNumber returns the length of the reduced word.
func CrossingNumber(w braid.Word) uint32 { return uint32(w.Reduce().Len()) }

// Signature returns the signature of the closure of w.
func (c *Calculator) Signature(w braid.Word) (int, error) {
	reduced, err := c.Prepare(w)
	if err != nil {
		return 0, err
	}
	return signature(reduced), nil
}

// Determinant returns |Δ(−1)| for an Alexander polynomial.
func Determinant(alexander []Term) *big.Int {
	return determinantOf(FromTerms(alexander))
}

func determinantOf(a Polynomial) *big.Int {
	d := a.EvalInt(-1)
	return d.Abs(d)
}
