package invariant

import "github.com/turtacn/KnotWeave/internal/domain/braid"

// matrix is a dense square matrix of Laurent polynomials in t.
type matrix [][]Polynomial

func identityMatrix(n int) matrix {
	m := make(matrix, n)
	for i := range m {
		m[i] = make([]Polynomial, n)
		m[i][i] = One()
	}
	return m
}

// burau returns ψ(β), the reduced Burau matrix of w, of size (N-1)×(N-1).
//
// The generator matrices differ from the identity only in column c = i-1:
//
//	σ_i:   (c-1, c) = t,  (c, c) = −t,    (c+1, c) = 1
//	σ_i⁻¹: (c-1, c) = 1,  (c, c) = −t⁻¹,  (c+1, c) = t⁻¹
//
// so right-multiplying by one only rewrites column c.
func burau(w braid.Word) matrix {
	n := w.Strands() - 1
	m := identityMatrix(n)
	t := Monomial(1, 1)
	tInv := Monomial(1, -1)
	for _, g := range w.Generators() {
		c := g.Index() - 1
		var above, diag, below Polynomial
		if g.Sign() > 0 {
			above, diag, below = t, t.Neg(), One()
		} else {
			above, diag, below = One(), tInv.Neg(), tInv
		}
		for r := 0; r < n; r++ {
			col := m[r][c].Mul(diag)
			if c > 0 {
				col = col.Add(m[r][c-1].Mul(above))
			}
			if c+1 < n {
				col = col.Add(m[r][c+1].Mul(below))
			}
			m[r][c] = col
		}
	}
	return m
}

// determinant computes det(m) with fraction-free Bareiss elimination.  Every
// intermediate entry is a minor of m and therefore a Laurent polynomial with
// integer coefficients, so every division is exact over the integers.  m is
// consumed.
func determinant(m matrix) Polynomial {
	n := len(m)
	if n == 0 {
		return One()
	}
	negate := false
	prev := One()
	for k := 0; k < n-1; k++ {
		if m[k][k].IsZero() {
			pivot := -1
			for r := k + 1; r < n; r++ {
				if !m[r][k].IsZero() {
					pivot = r
					break
				}
			}
			if pivot < 0 {
				return Polynomial{}
			}
			m[k], m[pivot] = m[pivot], m[k]
			negate = !negate
		}
		for i := k + 1; i < n; i++ {
			for j := k + 1; j < n; j++ {
				num := m[i][j].Mul(m[k][k]).Sub(m[i][k].Mul(m[k][j]))
				q, ok := num.DivExact(prev)
				if !ok {
					panic("invariant: inexact Bareiss division")
				}
				m[i][j] = q
			}
		}
		prev = m[k][k]
	}
	if negate {
		return m[n-1][n-1].Neg()
	}
	return m[n-1][n-1]
}

// split reports whether some generator index never occurs in w, in which
// case the closure is a split link.
func split(w braid.Word) bool {
	seen := make([]bool, w.Strands())
	for _, g := range w.Generators() {
		seen[g.Index()] = true
	}
	for i := 1; i < w.Strands(); i++ {
		if !seen[i] {
			return true
		}
	}
	return false
}

// alexander returns the Alexander polynomial of the closure of w:
//
//	Δ(t) = det(I − ψ(β)) / (1 + t + … + t^(N-1))
//
// normalised to lowest exponent 0 with a positive constant term.  Split
// links yield the zero polynomial.
func alexander(w braid.Word) Polynomial {
	if split(w) {
		return Polynomial{}
	}
	n := w.Strands() - 1
	m := burau(w)
	for i := range m {
		for j := range m[i] {
			m[i][j] = m[i][j].Neg()
		}
		m[i][i] = m[i][i].Add(One())
	}
	det := determinant(m)
	if det.IsZero() {
		return Polynomial{}
	}

	var geometric Polynomial
	for k := 0; k <= n; k++ {
		geometric = geometric.Add(Monomial(1, k))
	}
	delta, ok := det.DivExact(geometric)
	if !ok {
		panic("invariant: Burau determinant not divisible by 1 + t + ... + t^(N-1)")
	}
	if delta.IsZero() {
		return delta
	}
	delta = delta.Shift(-delta.MinExponent())
	if delta.Coefficient(0).Sign() < 0 {
		delta = delta.Neg()
	}
	return delta
}
