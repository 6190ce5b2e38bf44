// Package ephemeris implements the "broadcast-ephemeris propagation"
// external collaborator named in the estimator spec §1: turning a
// satellite id and time into an ECEF position/velocity and clock
// correction. It supports precise (SP3/CLK-style tabulated) ephemerides
// via Lagrange polynomial interpolation, grounded on the teacher's
// preceph.go PEphPos/PEphClk, and falls back to a simple Keplerian
// broadcast propagation grounded on ephemeris.go's Eph2Pos when no
// precise table entry covers the requested time.
package ephemeris

import (
	"math"
	"sort"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
)

const (
	omegaE      = 7.2921151467e-5
	gmEarth     = 3.9860050e14
	nMax        = 10   // Lagrange interpolation window (teacher's NMAX)
	maxDTE      = 900.0 // max extrapolation span (s) before falling back to broadcast
	extrapErr   = 5e-10 // orbit extrapolation error growth rate
)

// PreciseRecord is one tabulated epoch's satellite position (m) and clock
// bias (s), the SP3/CLK-equivalent sample the precise-ephemeris interface
// is built from (parsing those file formats is out of scope per spec §1).
type PreciseRecord struct {
	Time  gtime.Time
	Pos   geodetic.Vec3
	Clock float64
}

// KeplerianElements is a minimal broadcast orbit model (grounded on
// ephemeris.go's Eph2Pos), used as the fallback when no precise table
// entry is available for a satellite/time.
type KeplerianElements struct {
	Toe                       gtime.Time
	SqrtA, E, I0, OMG0, Omega, M0 float64
	Delta_n, OMGDot, IDot     float64
	Cus, Cuc, Crs, Crc, Cis, Cic float64
	ClockBias, ClockDrift, ClockDriftRate float64
	Toc                       gtime.Time
}

// Table holds the precise and broadcast ephemerides in maps keyed by
// satellite id; each satellite's precise samples are a time-sorted slice
// searched by binary search.
type Table struct {
	precise  map[int][]PreciseRecord
	brdc     map[int]KeplerianElements
}

// NewTable builds an empty ephemeris source; callers populate it via
// AddPrecise/AddBroadcast as products are loaded by the caller's own
// RINEX/SP3 reader (out of scope here).
func NewTable() *Table {
	return &Table{precise: make(map[int][]PreciseRecord), brdc: make(map[int]KeplerianElements)}
}

// AddPrecise appends one tabulated sample for sat, keeping the per-sat
// slice time-sorted.
func (t *Table) AddPrecise(sat int, rec PreciseRecord) {
	t.precise[sat] = append(t.precise[sat], rec)
	sort.Slice(t.precise[sat], func(i, j int) bool {
		return t.precise[sat][i].Time.Sub(t.precise[sat][j].Time) < 0
	})
}

// SetBroadcast installs the Keplerian broadcast elements for sat, used
// only as a fallback when the precise table does not cover the query time.
func (t *Table) SetBroadcast(sat int, el KeplerianElements) {
	t.brdc[sat] = el
}

// SatPos implements ppp.EphemerisProvider: returns sat's ECEF
// position/velocity, clock bias/drift (s, s/s) and orbit variance (m^2).
func (t *Table) SatPos(time gtime.Time, sat int) (pos, vel geodetic.Vec3, clkBias, clkDrift, varPos float64, healthy bool) {
	if recs, ok := t.precise[sat]; ok && len(recs) >= nMax+1 {
		if p, v, cb, cd, vr, ok2 := interpolatePrecise(recs, time); ok2 {
			return p, v, cb, cd, vr, true
		}
	}
	if el, ok := t.brdc[sat]; ok {
		p, v, cb, cd := propagateKeplerian(el, time)
		return p, v, cb, cd, 4.0, true
	}
	return pos, vel, 0, 0, 0, false
}

func interpolatePrecise(recs []PreciseRecord, time gtime.Time) (pos, vel geodetic.Vec3, clkBias, clkDrift, varPos float64, ok bool) {
	n := len(recs)
	if time.Sub(recs[0].Time) < -maxDTE || time.Sub(recs[n-1].Time) > maxDTE {
		return pos, vel, 0, 0, 0, false
	}
	// binary search for the first record at or after time.
	i, j := 0, n-1
	for i < j {
		k := (i + j) / 2
		if recs[k].Time.Sub(time) < 0 {
			i = k + 1
		} else {
			j = k
		}
	}
	index := i
	if index > 0 {
		index--
	}
	start := index - nMax/2
	if start < 0 {
		start = 0
	} else if start+nMax >= n {
		start = n - nMax - 1
	}
	if start < 0 {
		return pos, vel, 0, 0, 0, false
	}

	var tarr [nMax + 1]float64
	var px, py, pz [nMax + 1]float64
	for k := 0; k <= nMax; k++ {
		r := recs[start+k]
		tarr[k] = r.Time.Sub(time)
		// earth-rotation correction for the tabulated-frame delay, as the
		// teacher's PEphPos applies before the Lagrange fit.
		sinl, cosl := math.Sin(omegaE*tarr[k]), math.Cos(omegaE*tarr[k])
		px[k] = cosl*r.Pos[0] - sinl*r.Pos[1]
		py[k] = sinl*r.Pos[0] + cosl*r.Pos[1]
		pz[k] = r.Pos[2]
	}
	pos[0] = lagrange(tarr[:], px[:])
	pos[1] = lagrange(tarr[:], py[:])
	pos[2] = lagrange(tarr[:], pz[:])

	// velocity via central difference with a 1s straddle, same Lagrange fit.
	const h = 1.0
	var tlo, thi [nMax + 1]float64
	copy(tlo[:], tarr[:])
	copy(thi[:], tarr[:])
	for k := range tlo {
		tlo[k] += h
		thi[k] -= h
	}
	var pxlo, pylo, pzlo, pxhi, pyhi, pzhi [nMax + 1]float64
	copy(pxlo[:], px[:])
	copy(pylo[:], py[:])
	copy(pzlo[:], pz[:])
	copy(pxhi[:], px[:])
	copy(pyhi[:], py[:])
	copy(pzhi[:], pz[:])
	lo := geodetic.Vec3{lagrange(tlo[:], pxlo[:]), lagrange(tlo[:], pylo[:]), lagrange(tlo[:], pzlo[:])}
	hi := geodetic.Vec3{lagrange(thi[:], pxhi[:]), lagrange(thi[:], pyhi[:]), lagrange(thi[:], pzhi[:])}
	vel = hi.Sub(lo).Scale(1.0 / (2 * h))

	// linear clock interpolation between the two bracketing samples.
	t0 := time.Sub(recs[index].Time)
	t1 := time.Sub(recs[index+1].Time)
	c0, c1 := recs[index].Clock, recs[index+1].Clock
	switch {
	case t0 <= 0.0:
		clkBias = c0
	case t1 >= 0.0:
		clkBias = c1
	case c0 != 0.0 && c1 != 0.0:
		clkBias = (c1*t0 - c0*t1) / (t0 - t1)
		clkDrift = (c1 - c0) / (recs[index+1].Time.Sub(recs[index].Time))
	}
	varPos = extrapErr * tarr[0] * tarr[0]
	return pos, vel, clkBias, clkDrift, varPos, true
}

// lagrange evaluates the Neville/Lagrange polynomial through (x,y) pairs
// at x=0, destructively as the teacher's InterpPol does.
func lagrange(x, y []float64) float64 {
	n := len(x)
	yy := make([]float64, n)
	copy(yy, y)
	for j := 1; j < n; j++ {
		for i := 0; i < n-j; i++ {
			yy[i] = (x[i+j]*yy[i] - x[i]*yy[i+1]) / (x[i+j] - x[i])
		}
	}
	return yy[0]
}

// propagateKeplerian computes ECEF position and clock from broadcast
// elements (grounded on ephemeris.go's Eph2Pos Keplerian propagation).
// Velocity is not computed; the returned vel is always zero.
func propagateKeplerian(el KeplerianElements, time gtime.Time) (pos, vel geodetic.Vec3, clkBias, clkDrift float64) {
	a := el.SqrtA * el.SqrtA
	n0 := math.Sqrt(gmEarth / (a * a * a))
	tk := time.Sub(el.Toe)
	n := n0 + el.Delta_n
	mk := el.M0 + n*tk

	ek := mk
	for i := 0; i < 30; i++ {
		ekNew := mk + el.E*math.Sin(ek)
		if math.Abs(ekNew-ek) < 1e-13 {
			ek = ekNew
			break
		}
		ek = ekNew
	}
	sinE, cosE := math.Sin(ek), math.Cos(ek)
	vk := math.Atan2(math.Sqrt(1-el.E*el.E)*sinE, cosE-el.E)
	phik := vk + el.Omega
	sin2p, cos2p := math.Sin(2*phik), math.Cos(2*phik)

	duk := el.Cus*sin2p + el.Cuc*cos2p
	drk := el.Crs*sin2p + el.Crc*cos2p
	dik := el.Cis*sin2p + el.Cic*cos2p

	uk := phik + duk
	rk := a*(1-el.E*cosE) + drk
	ik := el.I0 + el.IDot*tk + dik

	xk, yk := rk*math.Cos(uk), rk*math.Sin(uk)
	omgk := el.OMG0 + (el.OMGDot-omegaE)*tk - omegaE*el.Toe.Sub(gtime.Time{})

	sinO, cosO := math.Sin(omgk), math.Cos(omgk)
	sinI, cosI := math.Sin(ik), math.Cos(ik)

	pos[0] = xk*cosO - yk*cosI*sinO
	pos[1] = xk*sinO + yk*cosI*cosO
	pos[2] = yk*sinI

	clkBias = el.ClockBias + el.ClockDrift*time.Sub(el.Toc) + el.ClockDriftRate*time.Sub(el.Toc)*time.Sub(el.Toc)
	clkDrift = el.ClockDrift
	return pos, vel, clkBias, clkDrift
}
