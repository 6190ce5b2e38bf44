// Package pointpos implements the single-point least-squares positioning
// collaborator named in the estimator spec §4.4 ("the filter is seeded
// from a conventional single-point position/clock solution on the first
// epoch"), grounded on the teacher's pntpos.go EstimatePos/Residuals, and
// restyled around gonum/mat's normal equations (H'H inverted, times H'v) the way the
// example pack's bancroft-style positioners use gonum instead of the
// teacher's hand-rolled Gauss-Jordan.
package pointpos

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/ppp"
)

const (
	maxIter     = 10
	convergeEps = 1e-4
	elevMask    = 5.0 * math.Pi / 180.0
	cLight      = 299792458.0
)

// Solver is the stateless iterative-LSQ collaborator.
type Solver struct{}

// NewSolver returns a ready-to-use single-point-positioning collaborator.
func NewSolver() *Solver { return &Solver{} }

// Solve implements ppp.PointPositioner: an iterative least-squares fix
// using only pseudoranges (first tracked frequency per satellite), grounded
// on the teacher's EstimatePos/PntPos iteration loop. All residuals carry
// equal weight; no elevation or SNR weighting is applied.
func (s *Solver) Solve(epoch ppp.Epoch, eph ppp.EphemerisProvider, lam [ppp.MaxSat + 1][ppp.NumFreq]float64) (pos geodetic.Vec3, clockBias [ppp.NumClockSys]float64, ok bool) {
	type obsFix struct {
		pr        float64
		satPos    geodetic.Vec3
		clkBias   float64
		clockSys  int
	}
	var recs []obsFix
	for _, o := range epoch.Obs {
		pr := firstCode(o)
		if pr == 0 {
			continue
		}
		p, _, cb, _, _, healthy := eph.SatPos(epoch.Time, o.Sat)
		if !healthy {
			continue
		}
		recs = append(recs, obsFix{pr: pr, satPos: p, clkBias: cb, clockSys: ppp.ClockSysIndex(satSysOf(o.Sat))})
	}
	if len(recs) < 4 {
		return pos, clockBias, false
	}

	nx := 3 + ppp.NumClockSys
	x := make([]float64, nx)
	for iter := 0; iter < maxIter; iter++ {
		rr := geodetic.Vec3{x[0], x[1], x[2]}
		var hRows, vVals []float64
		for _, r := range recs {
			rng, e := geodetic.GeometricRange(r.satPos, rr)
			if rng <= 0 {
				continue
			}
			geo := geodetic.ECEFToGeodetic(rr)
			_, el := geodetic.AzEl(geo, e)
			if iter > 1 && el < elevMask {
				continue
			}
			row := make([]float64, nx)
			row[0], row[1], row[2] = -e[0], -e[1], -e[2]
			row[3+r.clockSys] = 1.0
			hRows = append(hRows, row...)
			pred := rng + x[3+r.clockSys] - r.clkBias*cLight
			vVals = append(vVals, r.pr-pred)
		}
		nused := len(vVals)
		if nused < 4 {
			return pos, clockBias, false
		}
		hc := mat.NewDense(nused, nx, hRows)
		vc := mat.NewVecDense(nused, vVals)

		var hth mat.Dense
		hth.Mul(hc.T(), hc)
		var htv mat.VecDense
		htv.MulVec(hc.T(), vc)

		var hthInv mat.Dense
		if err := hthInv.Inverse(&hth); err != nil {
			return pos, clockBias, false
		}
		var dx mat.VecDense
		dx.MulVec(&hthInv, &htv)

		maxd := 0.0
		for i := 0; i < nx; i++ {
			x[i] += dx.AtVec(i)
			if math.Abs(dx.AtVec(i)) > maxd {
				maxd = math.Abs(dx.AtVec(i))
			}
		}
		if maxd < convergeEps {
			break
		}
	}

	pos = geodetic.Vec3{x[0], x[1], x[2]}
	for i := 0; i < ppp.NumClockSys; i++ {
		clockBias[i] = x[3+i]
	}
	return pos, clockBias, true
}

func firstCode(o ppp.Observation) float64 {
	for f := 0; f < ppp.NumFreq; f++ {
		if o.Freq[f].P != 0 {
			return o.Freq[f].P
		}
	}
	return 0
}

// satSysOf mirrors the ppp package's placeholder satellite-id-space
// convention (see corrector.go's clockSysPrnBase): real system membership
// is owned by the ephemeris collaborator's satellite table, not
// reimplemented here.
func satSysOf(sat int) int {
	switch {
	case sat >= 160:
		return ppp.SysCMP
	default:
		return ppp.SysGPS
	}
}
