// Package kalman is the "matrix linear-algebra kernel" external
// collaborator named by the estimator spec: dense GEMM and the symmetric
// Kalman measurement update, backed by gonum/mat in place of the teacher's
// hand-rolled column-major slice arithmetic.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Update performs one symmetric Kalman measurement update:
//
//	K = P*H*(H'*P*H+R)^-1
//	xp = x + K*v
//	Pp = (I-K*H')*P
//
// Only state entries considered "active" (x[i] != 0 and P[i][i] > 0, the
// invariant the estimator core maintains) participate; inactive rows/columns
// pass through x and P unmodified. H is n x m (one design column per
// measurement), v and R describe m scalar measurements.
func Update(x []float64, p *mat.SymDense, h *mat.Dense, v *mat.VecDense, r *mat.SymDense) error {
	n, m := len(x), v.Len()
	if rows, cols := h.Dims(); rows != n || cols != m {
		return fmt.Errorf("kalman: H dims (%d,%d) mismatch n=%d m=%d", rows, cols, n, m)
	}

	active := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if x[i] != 0.0 && p.At(i, i) > 0.0 {
			active = append(active, i)
		}
	}
	k := len(active)
	if k == 0 {
		return nil
	}

	xSub := mat.NewVecDense(k, nil)
	pSub := mat.NewSymDense(k, nil)
	hSub := mat.NewDense(k, m, nil)
	for i, gi := range active {
		xSub.SetVec(i, x[gi])
		for j, gj := range active {
			if j >= i {
				pSub.SetSym(i, j, p.At(gi, gj))
			}
		}
		for c := 0; c < m; c++ {
			hSub.Set(i, c, h.At(gi, c))
		}
	}

	// S = H'*P*H + R  (m x m)
	var ph mat.Dense
	ph.Mul(pSub, hSub)
	var s mat.Dense
	s.Mul(hSub.T(), &ph)
	s.Add(&s, r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("kalman: innovation covariance singular: %w", err)
	}

	// K = P*H*S^-1  (k x m)
	var gain mat.Dense
	gain.Mul(&ph, &sInv)

	// xp = x + K*v
	var dx mat.VecDense
	dx.MulVec(&gain, v)
	var xp mat.VecDense
	xp.AddVec(xSub, &dx)

	// Pp = (I - K*H')*P
	var kh mat.Dense
	kh.Mul(&gain, hSub.T())
	ident := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		ident.Set(i, i, 1.0)
	}
	var imkh mat.Dense
	imkh.Sub(ident, &kh)
	var pp mat.Dense
	pp.Mul(&imkh, pSub)

	for i, gi := range active {
		x[gi] = xp.AtVec(i)
		for j, gj := range active {
			val := 0.5 * (pp.At(i, j) + pp.At(j, i)) // symmetrize floating-point drift
			p.SetSym(gi, gj, val)
		}
	}
	return nil
}

// PropagateLinear advances x and P through a linear transition x<-Fx,
// P<-FPF'+Q over the active sub-block given by idx, mirroring the source's
// state-transition step for position/velocity/acceleration dynamics.
func PropagateLinear(x []float64, p *mat.SymDense, idx []int, f *mat.Dense, q *mat.SymDense) {
	k := len(idx)
	xSub := mat.NewVecDense(k, nil)
	pSub := mat.NewSymDense(k, nil)
	for i, gi := range idx {
		xSub.SetVec(i, x[gi])
		for j, gj := range idx {
			if j >= i {
				pSub.SetSym(i, j, p.At(gi, gj))
			}
		}
	}
	var xp mat.VecDense
	xp.MulVec(f, xSub)

	var fp mat.Dense
	fp.Mul(f, pSub)
	var pp mat.Dense
	pp.Mul(&fp, f.T())

	for i, gi := range idx {
		x[gi] = xp.AtVec(i)
		for j, gj := range idx {
			val := 0.5 * (pp.At(i, j) + pp.At(j, i))
			if q != nil {
				val += q.At(i, j)
			}
			p.SetSym(gi, gj, val)
		}
	}
}

// InflateDiag adds sigma2 to P[i][i], the random-walk / white-noise process
// noise injection used throughout Time Update.
func InflateDiag(p *mat.SymDense, i int, sigma2 float64) {
	p.SetSym(i, i, p.At(i, i)+sigma2)
}

// Reinit sets x[i]=val, P[i][i]=variance and zeroes i's off-diagonal
// covariance, the "initx" idiom used whenever a parameter is (re)activated.
func Reinit(x []float64, p *mat.SymDense, i int, val, variance float64) {
	n := p.SymmetricDim()
	x[i] = val
	for j := 0; j < n; j++ {
		if j != i {
			p.SetSym(i, j, 0.0)
		}
	}
	p.SetSym(i, i, variance)
}

// Deactivate clears x[i] and P[i][i], the inverse of Reinit, used to drop a
// parameter (e.g. an ambiguity column on excessive outage).
func Deactivate(x []float64, p *mat.SymDense, i int) {
	x[i] = 0.0
	p.SetSym(i, i, 0.0)
}
