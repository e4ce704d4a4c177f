package invariant

import (
	"math/big"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
)

// ArfUndefined marks the Arf invariant of a link with more than one
// component.
const ArfUndefined = -1

// seifertLoop is a generator of H₁ of the braid's Seifert surface: the loop
// through the two Seifert disks joined by generator index that runs down
// the band at position from and back up the next band of the same index at
// position to.
type seifertLoop struct {
	index    int
	from, to int
}

func seifertLoops(w braid.Word) []seifertLoop {
	gens := w.Generators()
	var out []seifertLoop
	for i := 1; i < w.Strands(); i++ {
		last := -1
		for p, g := range gens {
			if g.Index() != i {
				continue
			}
			if last >= 0 {
				out = append(out, seifertLoop{index: i, from: last, to: p})
			}
			last = p
		}
	}
	return out
}

// symmetrizedSeifert returns V + Vᵀ for the Seifert surface built from one
// disk per strand and one half-twisted band per crossing.
func symmetrizedSeifert(w braid.Word) [][]int64 {
	gens := w.Generators()
	eps := func(p int) int64 { return int64(gens[p].Sign()) }
	loops := seifertLoops(w)
	m := make([][]int64, len(loops))
	for a := range m {
		m[a] = make([]int64, len(loops))
	}
	for a, la := range loops {
		m[a][a] = -(eps(la.from) + eps(la.to))
		for b, lb := range loops {
			switch {
			case lb.index == la.index && lb.from == la.to:
				m[a][b] = eps(la.to)
				m[b][a] = eps(la.to)
			case lb.index == la.index+1:
				var v int64
				if la.from < lb.from && lb.from < la.to && la.to < lb.to {
					v = -1
				} else if lb.from < la.from && la.from < lb.to && lb.to < la.to {
					v = 1
				}
				m[a][b] = v
				m[b][a] = v
			}
		}
	}
	return m
}

// signature returns the signature of the closure of w: positive minus
// negative eigenvalues of V + Vᵀ, found by exact symmetric elimination.
// Positive braids have non-positive signature.
func signature(w braid.Word) int {
	sym := symmetrizedSeifert(w)
	a := make([][]*big.Rat, len(sym))
	for i, row := range sym {
		a[i] = make([]*big.Rat, len(row))
		for j, v := range row {
			a[i][j] = new(big.Rat).SetInt64(v)
		}
	}
	return inertia(a)
}

// inertia counts positive minus negative pivots of the symmetric matrix a
// under congruence.  a is consumed.
func inertia(a [][]*big.Rat) int {
	sig := 0
	for len(a) > 0 {
		n := len(a)
		piv := -1
		for i := 0; i < n; i++ {
			if a[i][i].Sign() != 0 {
				piv = i
				break
			}
		}
		if piv < 0 {
			// Every diagonal entry is zero; folding row and column j into i
			// makes a[i][i] = 2·a[i][j].
			pi, pj := -1, -1
			for i := 0; i < n && pi < 0; i++ {
				for j := 0; j < n; j++ {
					if a[i][j].Sign() != 0 {
						pi, pj = i, j
						break
					}
				}
			}
			if pi < 0 {
				break
			}
			for k := 0; k < n; k++ {
				a[pi][k].Add(a[pi][k], a[pj][k])
			}
			for k := 0; k < n; k++ {
				a[k][pi].Add(a[k][pi], a[k][pj])
			}
			piv = pi
		}

		d := a[piv][piv]
		sig += d.Sign()
		rest := make([][]*big.Rat, 0, n-1)
		var f big.Rat
		for r := 0; r < n; r++ {
			if r == piv {
				continue
			}
			row := make([]*big.Rat, 0, n-1)
			f.Quo(a[r][piv], d)
			for c := 0; c < n; c++ {
				if c == piv {
					continue
				}
				v := new(big.Rat).Mul(&f, a[piv][c])
				row = append(row, v.Sub(a[r][c], v))
			}
			rest = append(rest, row)
		}
		a = rest
	}
	return sig
}

// unknottingBound is the lower bound ⌈|σ|/2⌉ on the unknotting number.
func unknottingBound(sig int) int {
	if sig < 0 {
		sig = -sig
	}
	return (sig + 1) / 2
}

// bridgeBound bounds the bridge number from above: no more than the braid
// index or the crossing count, and never below the component count.
func bridgeBound(w braid.Word) int {
	return max(w.Components(), min(w.Strands(), max(w.Len(), 1)))
}

// arf returns the Arf invariant of a knot from its determinant: 0 when
// det ≡ ±1 (mod 8) and 1 when det ≡ ±3 (mod 8).  Links yield ArfUndefined.
func arf(components int, det *big.Int) int {
	if components != 1 {
		return ArfUndefined
	}
	switch new(big.Int).Mod(det, big.NewInt(8)).Int64() {
	case 1, 7:
		return 0
	case 3, 5:
		return 1
	}
	return ArfUndefined
}
