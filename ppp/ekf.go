package ppp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gnssgo/pppcore/internal/kalman"
)

// Iterate runs the bounded measurement-update loop (C6, spec §4.6): snapshot
// → prefit → linear update → postfit → accept-or-reiterate, up to maxIter
// times. On return, s.X/s.P hold the accepted state (unchanged if no
// iteration accepted) and s.Sol.Stat/Err are set.
func (s *Session) Iterate(ep Epoch, geom map[int]SatGeom) {
	n := s.Idx.StateSize()
	excluded := make(map[int]bool)
	acceptedOnce := false

	iter := 0
	for ; iter < maxIter; iter++ {
		xp := make([]float64, n)
		copy(xp, s.X)
		pp := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				pp.SetSym(i, j, s.P.At(i, j))
			}
		}

		rows, _, _, _ := s.BuildMeasurements(ep, geom, xp, false, excluded)
		if len(rows) == 0 {
			s.Sol.Err = ErrTooFewSats
			s.Sol.Stat = SolNone
			break
		}

		h, v, r := assembleHVR(n, rows)
		if err := kalman.Update(xp, pp, h, v, r); err != nil {
			s.Sol.Err = ErrIllConditioned
			s.Sol.Stat = SolNone
			break
		}

		postRows, rejSat, rejFreq, rejected := s.BuildMeasurements(ep, geom, xp, true, excluded)
		_ = postRows
		if !rejected {
			copy(s.X, xp)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					s.P.SetSym(i, j, pp.At(i, j))
				}
			}
			s.Sol.Stat = SolFloat
			s.Sol.Err = ErrNone
			acceptedOnce = true
			break
		}
		excluded[rejSat] = true
		s.Sol.Err = ErrOutlier
		_ = rejFreq
	}

	if iter >= maxIter && !acceptedOnce {
		s.Sol.Err = ErrIterOverflow
		s.Sol.Stat = SolNone
	}
}

// assembleHVR packs sparse measRows into the dense H/v/R triple the kalman
// collaborator consumes.
func assembleHVR(n int, rows []measRow) (*mat.Dense, *mat.VecDense, *mat.SymDense) {
	m := len(rows)
	h := mat.NewDense(n, m, nil)
	v := mat.NewVecDense(m, nil)
	r := mat.NewSymDense(m, nil)
	for col, row := range rows {
		v.SetVec(col, row.residual)
		r.SetSym(col, col, row.variance)
		for idx, coef := range row.row {
			h.Set(idx, col, coef)
		}
	}
	return h, v, r
}
