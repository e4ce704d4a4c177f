// Package statmech maps braid energies onto a bounded stability score through
// a Boltzmann ensemble over the word's single-deletion neighbourhood.
package statmech

import (
	"math"

	"github.com/turtacn/KnotWeave/pkg/errors"
)

// entropyFloor is the probability below which a state contributes nothing to
// the entropy.
const entropyFloor = 1e-10

// Reference is the per-strand free energy range mapped onto stability 1
// (at Min) and 0 (at Max).
type Reference struct {
	Min float64
	Max float64
}

// DefaultReference is the reference range used when none is configured.
var DefaultReference = Reference{Min: 0, Max: 15}

func checkTemperature(t float64) error {
	if !(t > 0) || math.IsInf(t, 1) {
		return errors.InvalidTemperature("temperature must be a positive finite number").
			WithDetailf("temperature=%g", t)
	}
	return nil
}

// Boltzmann returns exp(−e/T).
func Boltzmann(e, t float64) (float64, error) {
	if err := checkTemperature(t); err != nil {
		return 0, err
	}
	return math.Exp(-e / t), nil
}

// PartitionFunction returns Z = Σ exp(−e_i/T).
func PartitionFunction(energies []float64, t float64) (float64, error) {
	if err := checkTemperature(t); err != nil {
		return 0, err
	}
	z := 0.0
	for _, e := range energies {
		z += math.Exp(-e / t)
	}
	return z, nil
}

// Distribution returns the normalised Boltzmann probabilities of energies.
// Weights are shifted by the minimum energy before exponentiation, which
// leaves the distribution unchanged and keeps large energies from
// underflowing to an all-zero ensemble.
func Distribution(energies []float64, t float64) ([]float64, error) {
	if err := checkTemperature(t); err != nil {
		return nil, err
	}
	if len(energies) == 0 {
		return []float64{}, nil
	}
	lo := energies[0]
	for _, e := range energies[1:] {
		lo = math.Min(lo, e)
	}
	ps := make([]float64, len(energies))
	z := 0.0
	for i, e := range energies {
		ps[i] = math.Exp(-(e - lo) / t)
		z += ps[i]
	}
	for i := range ps {
		ps[i] /= z
	}
	return ps, nil
}

// Entropy returns the Shannon entropy −Σ p·ln p, ignoring p ≤ 1e-10.
func Entropy(ps []float64) float64 {
	s := 0.0
	for _, p := range ps {
		if p > entropyFloor {
			s -= p * math.Log(p)
		}
	}
	return s
}

// FreeEnergy returns e − T·s.
func FreeEnergy(e, t, s float64) (float64, error) {
	if err := checkTemperature(t); err != nil {
		return 0, err
	}
	return e - t*s, nil
}

// Stability maps free energy F of a knot on strands strands onto [0,1]:
// f = F/(strands−1), then 1 − (f − ref.Min)/(ref.Max − ref.Min), clamped.
// It is monotone non-increasing in F.
func Stability(f float64, strands int, ref Reference) float64 {
	if ref.Max <= ref.Min {
		ref = DefaultReference
	}
	perStrand := f
	if strands > 1 {
		perStrand = f / float64(strands-1)
	}
	return clamp01(1 - (perStrand-ref.Min)/(ref.Max-ref.Min))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Ensemble is the outcome of one stability evaluation.
type Ensemble struct {
	Energy     float64
	Entropy    float64
	FreeEnergy float64
	Stability  float64
}

// Evaluate treats energy together with its neighbourhood as a canonical
// ensemble at temperature t and returns the resulting stability.
func Evaluate(energy float64, neighbourhood []float64, strands int, t float64, ref Reference) (Ensemble, error) {
	states := make([]float64, 0, len(neighbourhood)+1)
	states = append(states, energy)
	states = append(states, neighbourhood...)

	ps, err := Distribution(states, t)
	if err != nil {
		return Ensemble{}, err
	}
	s := Entropy(ps)
	f, err := FreeEnergy(energy, t, s)
	if err != nil {
		return Ensemble{}, err
	}
	return Ensemble{
		Energy:     energy,
		Entropy:    s,
		FreeEnergy: f,
		Stability:  Stability(f, strands, ref),
	}, nil
}
