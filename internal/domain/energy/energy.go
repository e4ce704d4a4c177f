// Package energy defines the configuration energy of a braid word and its
// single-deletion neighbourhood.
package energy

import (
	"math"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
)

// Of returns crossings + ½·|writhe| + crossings·f, where f is the share of
// adjacent generator pairs whose signs differ.  The word is measured as
// given; callers reduce first when they want the energy of the knot.
func Of(w braid.Word) float64 {
	c := float64(w.Len())
	return c + 0.5*math.Abs(float64(w.Writhe())) + c*Alternation(w)
}

// Alternation returns the share of adjacent generator pairs with opposite
// signs, 0 for words shorter than two.
func Alternation(w braid.Word) float64 {
	n := w.Len()
	if n < 2 {
		return 0
	}
	changes := 0
	for i := 1; i < n; i++ {
		if w.At(i).Sign() != w.At(i-1).Sign() {
			changes++
		}
	}
	return float64(changes) / float64(n-1)
}

// Neighbourhood returns the energy of every word obtained from w by deleting
// exactly one crossing, in crossing order.  The identity has an empty
// neighbourhood.
func Neighbourhood(w braid.Word) []float64 {
	out := make([]float64, w.Len())
	for i := range out {
		out[i] = Of(w.Without(i))
	}
	return out
}

// Delta returns Of(after) − Of(before).
func Delta(before, after braid.Word) float64 {
	return Of(after) - Of(before)
}
