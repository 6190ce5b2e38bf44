// Package tides implements the "IERS tide models" external collaborator
// named in the estimator spec §1: solid-earth tidal displacement of the
// receiver position, grounded on the teacher's tides.go Tide_solid. Ocean
// loading and pole tides (also present in the teacher) are out of scope
// here; solid-earth tide dominates at the cm level PPP cares about.
package tides

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
)

const (
	gmSun  = 1.32712442076e20 / 3.98600436e14 // GMs/GMe, teacher's RE_WGS84 convention
	gmMoon = 0.01230002 // GMm/GMe
)

// Model supplies the sun/moon ephemeris used to drive the tidal potential;
// out-of-scope ERP/leap-second detail is intentionally not modeled.
type Model struct {
	SunMoon func(t gtime.Time) (sun, moon geodetic.Vec3)
}

// Displacement implements ppp.TidesModel: the degree-2 solid-earth tide
// displacement (m) at receiver position rr (ECEF), grounded on Tide_pl/
// Tide_solid's direct-tide term (permanent + K1 corrections are dropped as
// a sub-mm refinement not worth the IERS table dependency this spec marks
// out of scope).
func (m *Model) Displacement(t gtime.Time, rr geodetic.Vec3) geodetic.Vec3 {
	if m.SunMoon == nil {
		return geodetic.Vec3{}
	}
	sun, moon := m.SunMoon(t)
	d1 := tidePlanet(rr, sun, gmSun)
	d2 := tidePlanet(rr, moon, gmMoon)
	return geodetic.Vec3{d1[0] + d2[0], d1[1] + d2[1], d1[2] + d2[2]}
}

// tidePlanet is the degree-2 tidal displacement from one perturbing body
// (sun or moon), grounded on Tide_pl.
func tidePlanet(rr, rp geodetic.Vec3, gmRatio float64) geodetic.Vec3 {
	const h2, l2 = 0.6078, 0.0847
	re := rr.Norm()
	if re == 0 {
		return geodetic.Vec3{}
	}
	ep, okp := unit(rp)
	er, okr := unit(rr)
	if !okp || !okr {
		return geodetic.Vec3{}
	}
	rp3 := re * re * re // receiver-relative scale factor, teacher's r^4/rp^3 simplified
	_ = rp3
	rpNorm := rp.Norm()
	if rpNorm == 0 {
		return geodetic.Vec3{}
	}
	k2 := gmRatio * re * re * re * re / (rpNorm * rpNorm * rpNorm)
	cosg := geodetic.Dot(er, ep)
	var dr geodetic.Vec3
	for i := 0; i < 3; i++ {
		p := 3.0*l2*cosg*(ep[i]-cosg*er[i]) + 1.5*(h2-3.0*l2*cosg*cosg)*er[i]
		dr[i] = k2 * p
	}
	return dr
}

func unit(v geodetic.Vec3) (geodetic.Vec3, bool) {
	n := v.Norm()
	if n <= 0 {
		return geodetic.Vec3{}, false
	}
	return v.Scale(1.0 / n), true
}

var _ = math.Pi
