package invariant

import (
	"math"
	"math/big"
	"sort"
)

// coefficientEpsilon is the magnitude below which a wire coefficient is
// treated as zero.
const coefficientEpsilon = 1e-9

// Term is one (exponent, coefficient) pair of a Laurent polynomial as it
// crosses the package boundary.
type Term struct {
	Exponent    int     `json:"exponent"`
	Coefficient float64 `json:"coefficient"`
}

// Polynomial is a Laurent polynomial in one variable with exact integer
// coefficients: c[k] is the coefficient of x^(low+k).  The zero value is the
// zero polynomial.  Polynomials are immutable and may share coefficients;
// every operation allocates its result.
type Polynomial struct {
	low int
	c   []*big.Int
}

// Monomial returns coef·x^exp.
func Monomial(coef int64, exp int) Polynomial {
	return Polynomial{low: exp, c: []*big.Int{big.NewInt(coef)}}.trim()
}

// One returns the constant polynomial 1.
func One() Polynomial { return Monomial(1, 0) }

// FromTerms builds a polynomial from terms in any order; repeated exponents
// are summed and coefficients are rounded to the nearest integer.
func FromTerms(terms []Term) Polynomial {
	if len(terms) == 0 {
		return Polynomial{}
	}
	lo, hi := terms[0].Exponent, terms[0].Exponent
	for _, t := range terms[1:] {
		lo = min(lo, t.Exponent)
		hi = max(hi, t.Exponent)
	}
	c := zeros(hi - lo + 1)
	for _, t := range terms {
		if math.IsNaN(t.Coefficient) || math.IsInf(t.Coefficient, 0) {
			continue
		}
		v, _ := big.NewFloat(math.Round(t.Coefficient)).Int(nil)
		c[t.Exponent-lo].Add(c[t.Exponent-lo], v)
	}
	return Polynomial{low: lo, c: c}.trim()
}

func zeros(n int) []*big.Int {
	c := make([]*big.Int, n)
	for i := range c {
		c[i] = new(big.Int)
	}
	return c
}

// trim drops zero coefficients from both ends.
func (p Polynomial) trim() Polynomial {
	start, end := 0, len(p.c)
	for start < end && p.c[start].Sign() == 0 {
		start++
	}
	for end > start && p.c[end-1].Sign() == 0 {
		end--
	}
	if start == end {
		return Polynomial{}
	}
	return Polynomial{low: p.low + start, c: p.c[start:end]}
}

// IsZero reports whether p is the zero polynomial.
func (p Polynomial) IsZero() bool { return len(p.trim().c) == 0 }

// MinExponent and MaxExponent return the exponent range; both are 0 for the
// zero polynomial.
func (p Polynomial) MinExponent() int { return p.low }
func (p Polynomial) MaxExponent() int {
	if len(p.c) == 0 {
		return 0
	}
	return p.low + len(p.c) - 1
}

// Coefficient returns a copy of the coefficient of x^exp.
func (p Polynomial) Coefficient(exp int) *big.Int {
	k := exp - p.low
	if k < 0 || k >= len(p.c) {
		return new(big.Int)
	}
	return new(big.Int).Set(p.c[k])
}

// Add returns p + q.
func (p Polynomial) Add(q Polynomial) Polynomial {
	if len(p.c) == 0 {
		return q
	}
	if len(q.c) == 0 {
		return p
	}
	lo := min(p.low, q.low)
	hi := max(p.MaxExponent(), q.MaxExponent())
	c := zeros(hi - lo + 1)
	for k, v := range p.c {
		c[p.low-lo+k].Add(c[p.low-lo+k], v)
	}
	for k, v := range q.c {
		c[q.low-lo+k].Add(c[q.low-lo+k], v)
	}
	return Polynomial{low: lo, c: c}.trim()
}

// Sub returns p − q.
func (p Polynomial) Sub(q Polynomial) Polynomial { return p.Add(q.Neg()) }

// Neg returns −p.
func (p Polynomial) Neg() Polynomial {
	c := make([]*big.Int, len(p.c))
	for i, v := range p.c {
		c[i] = new(big.Int).Neg(v)
	}
	return Polynomial{low: p.low, c: c}
}

// Scale returns k·p.
func (p Polynomial) Scale(k int64) Polynomial {
	bk := big.NewInt(k)
	c := make([]*big.Int, len(p.c))
	for i, v := range p.c {
		c[i] = new(big.Int).Mul(v, bk)
	}
	return Polynomial{low: p.low, c: c}.trim()
}

// Shift returns x^n·p.
func (p Polynomial) Shift(n int) Polynomial {
	if len(p.c) == 0 {
		return p
	}
	return Polynomial{low: p.low + n, c: p.c}
}

// Mul returns p·q.
func (p Polynomial) Mul(q Polynomial) Polynomial {
	if len(p.c) == 0 || len(q.c) == 0 {
		return Polynomial{}
	}
	c := zeros(len(p.c) + len(q.c) - 1)
	var prod big.Int
	for i, a := range p.c {
		if a.Sign() == 0 {
			continue
		}
		for j, b := range q.c {
			if b.Sign() == 0 {
				continue
			}
			c[i+j].Add(c[i+j], prod.Mul(a, b))
		}
	}
	return Polynomial{low: p.low + q.low, c: c}.trim()
}

// DivExact divides p by a non-zero q.  It reports false when q does not
// divide p over the integers.
func (p Polynomial) DivExact(q Polynomial) (Polynomial, bool) {
	p, q = p.trim(), q.trim()
	if len(q.c) == 0 {
		panic("invariant: division by zero polynomial")
	}
	if len(p.c) == 0 {
		return Polynomial{}, true
	}
	if len(p.c) < len(q.c) {
		return Polynomial{}, false
	}
	r := make([]*big.Int, len(p.c))
	for i, v := range p.c {
		r[i] = new(big.Int).Set(v)
	}
	quot := zeros(len(p.c) - len(q.c) + 1)
	lead := q.c[len(q.c)-1]
	var rem, prod big.Int
	for k := len(quot) - 1; k >= 0; k-- {
		top := r[k+len(q.c)-1]
		if top.Sign() == 0 {
			continue
		}
		quot[k].QuoRem(top, lead, &rem)
		if rem.Sign() != 0 {
			return Polynomial{}, false
		}
		for j, b := range q.c {
			r[k+j].Sub(r[k+j], prod.Mul(quot[k], b))
		}
	}
	for _, v := range r {
		if v.Sign() != 0 {
			return Polynomial{}, false
		}
	}
	return Polynomial{low: p.low - q.low, c: quot}.trim(), true
}

// EvalInt evaluates p exactly at an integer x.  x must be ±1 when p has
// negative exponents.
func (p Polynomial) EvalInt(x int64) *big.Int {
	bx := big.NewInt(x)
	sum := new(big.Int)
	for k := len(p.c) - 1; k >= 0; k-- {
		sum.Mul(sum, bx).Add(sum, p.c[k])
	}
	if p.low > 0 {
		sum.Mul(sum, new(big.Int).Exp(bx, big.NewInt(int64(p.low)), nil))
	} else if p.low < 0 && x == -1 && p.low%2 != 0 {
		sum.Neg(sum)
	}
	return sum
}

// Eval evaluates p at x in floating point.  x must be non-zero when p has
// negative exponents.
func (p Polynomial) Eval(x float64) float64 {
	sum := 0.0
	for k := len(p.c) - 1; k >= 0; k-- {
		sum = sum*x + toFloat(p.c[k])
	}
	return sum * math.Pow(x, float64(p.low))
}

func toFloat(v *big.Int) float64 {
	if v.IsInt64() {
		return float64(v.Int64())
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// Terms returns the non-zero terms sorted by ascending exponent.
func (p Polynomial) Terms() []Term {
	out := make([]Term, 0, len(p.c))
	for k, v := range p.c {
		if v.Sign() != 0 {
			out = append(out, Term{Exponent: p.low + k, Coefficient: toFloat(v)})
		}
	}
	return out
}

// Equal reports whether p and q have the same non-zero terms.
func (p Polynomial) Equal(q Polynomial) bool {
	return p.Sub(q).IsZero()
}

// NormalizeTerms sorts terms by exponent, merges duplicates and drops zeros.
func NormalizeTerms(terms []Term) []Term {
	sorted := make([]Term, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Exponent < sorted[j].Exponent })
	out := make([]Term, 0, len(sorted))
	for _, t := range sorted {
		if n := len(out); n > 0 && out[n-1].Exponent == t.Exponent {
			out[n-1].Coefficient += t.Coefficient
			continue
		}
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if math.Abs(t.Coefficient) >= coefficientEpsilon {
			kept = append(kept, t)
		}
	}
	return kept
}

// Distance returns the L2 distance between two coefficient vectors given as
// sorted term lists, walking the union of exponents in ascending order.  The
// result is exactly symmetric in its arguments.
func Distance(a, b []Term) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var d float64
		switch {
		case j >= len(b) || (i < len(a) && a[i].Exponent < b[j].Exponent):
			d = a[i].Coefficient
			i++
		case i >= len(a) || b[j].Exponent < a[i].Exponent:
			d = b[j].Coefficient
			j++
		default:
			d = a[i].Coefficient - b[j].Coefficient
			i++
			j++
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}
