// Package knot defines the immutable Knot value and the Builder that derives
// one from a braid word.
package knot

import (
	"math/big"
	"time"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/pkg/types/common"
)

// Knot is a reduced braid word together with every quantity derived from it.
// A Knot is never modified after construction; accessors return copies, so
// a *Knot may be shared freely between goroutines.
type Knot struct {
	word        braid.Word
	inv         invariant.Invariants
	energy      float64
	entropy     float64
	freeEnergy  float64
	stability   float64
	predecessor *Knot
	generation  int
}

// Word returns the reduced braid word.
func (k *Knot) Word() braid.Word { return k.word }

// Strands returns the strand count of the word.
func (k *Knot) Strands() int { return k.word.Strands() }

// CrossingNumber returns the reduced crossing count.
func (k *Knot) CrossingNumber() uint32 { return k.inv.CrossingNumber }

// Writhe returns the signed crossing sum.
func (k *Knot) Writhe() int32 { return k.inv.Writhe }

// Jones returns a copy of the Jones polynomial terms, in the variable A.
func (k *Knot) Jones() []invariant.Term { return copyTerms(k.inv.Jones) }

// Alexander returns a copy of the normalised Alexander polynomial terms.
func (k *Knot) Alexander() []invariant.Term { return copyTerms(k.inv.Alexander) }

// Determinant returns a copy of |Δ(−1)|.
func (k *Knot) Determinant() *big.Int { return copyInt(k.inv.Determinant) }

// Signature returns the signature of the closure.
func (k *Knot) Signature() int { return k.inv.Signature }

// UnknottingBound returns the signature lower bound on the unknotting number.
func (k *Knot) UnknottingBound() int { return k.inv.UnknottingBound }

// BridgeBound returns an upper bound on the bridge number.
func (k *Knot) BridgeBound() int { return k.inv.BridgeBound }

// Arf returns the Arf invariant, or invariant.ArfUndefined for links.
func (k *Knot) Arf() int { return k.inv.Arf }

// Components returns the number of closure components.
func (k *Knot) Components() int { return k.inv.Components }

// BraidIndex returns the strand count of the representing braid.
func (k *Knot) BraidIndex() int { return k.inv.BraidIndex }

// Invariants returns a copy of the full invariant set.
func (k *Knot) Invariants() invariant.Invariants {
	inv := k.inv
	inv.Jones = copyTerms(inv.Jones)
	inv.Alexander = copyTerms(inv.Alexander)
	inv.Determinant = copyInt(inv.Determinant)
	return inv
}

// Energy returns the configuration energy of the word.
func (k *Knot) Energy() float64 { return k.energy }

// Entropy returns the entropy of the word's local ensemble.
func (k *Knot) Entropy() float64 { return k.entropy }

// FreeEnergy returns Energy − T·Entropy at build temperature.
func (k *Knot) FreeEnergy() float64 { return k.freeEnergy }

// Stability returns the stability score in [0,1].
func (k *Knot) Stability() float64 { return k.stability }

// Predecessor returns the knot this one evolved from, or nil.
func (k *Knot) Predecessor() *Knot { return k.predecessor }

// Generation is 0 for built knots and grows by one per evolution step.
func (k *Knot) Generation() int { return k.generation }

// Fingerprint identifies the knot by its reduced word.
func (k *Knot) Fingerprint() string { return k.word.Fingerprint() }

func copyTerms(ts []invariant.Term) []invariant.Term {
	out := make([]invariant.Term, len(ts))
	copy(out, ts)
	return out
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// EntityKnotRecord binds a knot to the entity it was projected from.
type EntityKnotRecord struct {
	EntityID    string
	EntityType  common.EntityType
	Knot        *Knot
	GeneratedAt time.Time
}
