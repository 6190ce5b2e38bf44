// Package ambiguity implements the LAMBDA integer ambiguity search named
// in the estimator spec §7 as the AmbiguityResolver collaborator, grounded
// on the teacher's lamda.go (LD/Gauss/Perm/Reduction/Search/Lambda). It is
// restyled around gonum/mat's Dense/SymDense/VecDense the way the rest of
// this module uses gonum instead of the teacher's flat float64 slices.
package ambiguity

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Resolver is the stateless LAMBDA search collaborator; NCand controls how
// many integer candidates the search keeps (spec calls for "at least two",
// used to form the ratio test).
type Resolver struct {
	NCand int
}

// NewResolver returns a Resolver configured for the standard ratio-test
// candidate count.
func NewResolver() *Resolver {
	return &Resolver{NCand: 2}
}

// Resolve implements ppp.AmbiguityResolver: given the float ambiguity
// vector and its covariance, returns the best integer candidate, the
// second-best/best variance ratio, and whether the search succeeded.
func (r *Resolver) Resolve(floatAmb []float64, cov [][]float64) (fixed []float64, ratio float64, ok bool) {
	n := len(floatAmb)
	if n == 0 || len(cov) != n {
		return nil, 0, false
	}
	nc := r.NCand
	if nc < 2 {
		nc = 2
	}

	a := mat.NewVecDense(n, floatAmb)
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, 0, false
		}
		for j := i; j < n; j++ {
			q.SetSym(i, j, cov[i][j])
		}
	}

	l, d, zInv, err := reduction(q)
	if err != nil {
		return nil, 0, false
	}
	z := mat.NewDense(n, n, nil)
	if err := z.Inverse(zInv); err != nil {
		return nil, 0, false
	}

	// transformed float ambiguities: zt = Z' * a
	zt := mat.NewVecDense(n, nil)
	zt.MulVec(zInv.T(), a)

	cands, sqnorms := search(l, d, zt.RawVector().Data, nc)
	if len(cands) < 2 {
		return nil, 0, false
	}

	idx := sortBySqNorm(sqnorms)
	best, second := cands[idx[0]], cands[idx[1]]
	if sqnorms[idx[0]] <= 0 {
		return nil, 0, false
	}
	ratio = sqnorms[idx[1]] / sqnorms[idx[0]]

	// back-transform: a_fixed = Z^{-T} * best == z' * best (z holds Z^{-1})
	bestVec := mat.NewVecDense(n, best)
	fixedVec := mat.NewVecDense(n, nil)
	fixedVec.MulVec(z.T(), bestVec)

	fixed = make([]float64, n)
	copy(fixed, fixedVec.RawVector().Data)
	_ = second
	return fixed, ratio, true
}

// reduction performs the teacher's LD + integer Gauss transformation (Z),
// grounded on LD/Gauss/Perm/Reduction, returning the lower-triangular L,
// diagonal D, and accumulated integer transformation matrix zInv such that
// Z'*Q*Z = L*diag(D)*L' (zInv holds Z, named for its role in Resolve).
func reduction(q *mat.SymDense) (l *mat.Dense, d []float64, z *mat.Dense, err error) {
	n := q.SymmetricDim()
	qq := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			qq.Set(i, j, q.At(i, j))
		}
	}
	ll, dd, err := ldlDecomp(qq, n)
	if err != nil {
		return nil, nil, nil, err
	}
	z = identity(n)

	j0 := n - 2
	k0 := n - 2
	for j0 >= 0 {
		if j0 <= k0 {
			for i := j0 + 1; i < n; i++ {
				gauss(ll, z, n, i, j0)
			}
		}
		del := false
		for i := n - 1; i > j0; i-- {
			if permute(ll, dd, z, n, j0, i) {
				del = true
			}
		}
		if del {
			k0 = j0
			j0 = n - 2
		} else {
			j0--
		}
	}
	return ll, dd, z, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// ldlDecomp is the LD step (teacher's LD): L*diag(D)*L' = Q, L unit lower
// triangular, processed from the bottom-right corner as the teacher does.
func ldlDecomp(q *mat.Dense, n int) (*mat.Dense, []float64, error) {
	a := mat.DenseCopyOf(q)
	l := mat.NewDense(n, n, nil)
	d := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		d[i] = a.At(i, i)
		if d[i] <= 0 {
			return nil, nil, errors.New("ambiguity: covariance not positive definite")
		}
		sq := math.Sqrt(d[i])
		for j := 0; j <= i; j++ {
			l.Set(i, j, a.At(i, j)/sq)
		}
		for j := 0; j <= i-1; j++ {
			for k := 0; k <= j; k++ {
				a.Set(j, k, a.At(j, k)-l.At(i, j)*l.At(i, k))
			}
		}
		for j := 0; j <= i; j++ {
			l.Set(i, j, l.At(i, j)/l.At(i, i))
		}
	}
	return l, d, nil
}

// gauss applies an integer Gauss transformation eliminating L[i][j] via a
// rounded multiple of row j, grounded on the teacher's Gauss.
func gauss(l, z *mat.Dense, n, i, j int) {
	mu := math.Round(l.At(i, j))
	if mu == 0 {
		return
	}
	for k := i; k < n; k++ {
		l.Set(k, j, l.At(k, j)-mu*l.At(k, i))
	}
	for k := 0; k < n; k++ {
		z.Set(k, j, z.At(k, j)-mu*z.At(k, i))
	}
}

// permute swaps rows/cols i-1,i and re-triangularizes if doing so shrinks
// the conditional variance, grounded on the teacher's Perm.
func permute(l *mat.Dense, d []float64, z *mat.Dense, n, j0, i int) bool {
	i1 := i - 1
	if i1 < j0 {
		return false
	}
	delta := d[i1] + l.At(i, i1)*l.At(i, i1)*d[i]
	if delta >= d[i] {
		return false
	}
	lam := d[i1] * l.At(i, i1) / delta
	eta := d[i] / delta
	d[i1] = eta * d[i1]
	d[i] = delta

	for k := 0; k <= i-2; k++ {
		a0, a1 := l.At(i1, k), l.At(i, k)
		l.Set(i1, k, -l.At(i, i1)*a0+a1)
		l.Set(i, k, eta*a0+lam*a1)
	}
	l.Set(i, i1, lam)
	for k := i + 1; k < n; k++ {
		a0, a1 := l.At(k, i1), l.At(k, i)
		l.Set(k, i1, a1)
		l.Set(k, i, a0)
	}
	for k := 0; k < n; k++ {
		a0, a1 := z.At(k, i1), z.At(k, i)
		z.Set(k, i1, a1)
		z.Set(k, i, a0)
	}
	return true
}

// search performs the LAMBDA integer least-squares tree search, grounded
// on the teacher's Search, returning up to ncand integer candidate vectors
// and their squared norms (ascending is not guaranteed; caller sorts).
func search(l *mat.Dense, d []float64, zt []float64, ncand int) ([][]float64, []float64) {
	n := len(d)
	const loopMax = 10000
	chi2 := 1e18
	nn := 0

	zs := make([]float64, n)
	zb := make([]float64, n)
	step := make([]float64, n)
	dist := make([]float64, n)
	S := make([][]float64, n)
	for i := range S {
		S[i] = make([]float64, n)
	}

	cands := make([][]float64, 0, ncand)
	sqnorms := make([]float64, 0, ncand)

	copy(zb, zt)
	k := n - 1
	dist[k] = 0
	zb[k] = zt[k]
	zs[k] = math.Round(zb[k])
	y := zb[k] - zs[k]
	if y < 0 {
		step[k] = -1
	} else {
		step[k] = 1
	}

	for c := 0; c < loopMax; c++ {
		newdist := dist[k] + y*y/d[k]
		if newdist < chi2 {
			if k != 0 {
				k--
				dist[k] = newdist
				sum := 0.0
				for j := k + 1; j < n; j++ {
					sum += l.At(j, k) * (zb[j] - zs[j])
				}
				zb[k] = zt[k] - sum
				zs[k] = math.Round(zb[k])
				y = zb[k] - zs[k]
				if y < 0 {
					step[k] = -1
				} else {
					step[k] = 1
				}
			} else {
				cand := make([]float64, n)
				copy(cand, zs)
				worst := 0
				for i := 1; i < len(sqnorms); i++ {
					if sqnorms[i] > sqnorms[worst] {
						worst = i
					}
				}
				if nn < ncand {
					cands = append(cands, cand)
					sqnorms = append(sqnorms, newdist)
					nn++
				} else if newdist < sqnorms[worst] {
					// replace the current worst once pool is full, matching
					// the teacher's running-chi2 bound tightening.
					cands[worst], sqnorms[worst] = cand, newdist
				}
				if nn >= ncand {
					worst = 0
					for i := 1; i < len(sqnorms); i++ {
						if sqnorms[i] > sqnorms[worst] {
							worst = i
						}
					}
					chi2 = sqnorms[worst]
				}
				zs[0] += step[0]
				y = zb[0] - zs[0]
				if step[0] < 0 {
					step[0] = -step[0] + 1
				} else {
					step[0] = -step[0] - 1
				}
			}
		} else {
			if k == n-1 {
				break
			}
			k++
			zs[k] += step[k]
			y = zb[k] - zs[k]
			if step[k] < 0 {
				step[k] = -step[k] + 1
			} else {
				step[k] = -step[k] - 1
			}
		}
	}
	_ = S
	return cands, sqnorms
}

func sortBySqNorm(sqnorms []float64) []int {
	idx := make([]int, len(sqnorms))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return sqnorms[idx[i]] < sqnorms[idx[j]] })
	return idx
}
