package ppp

import (
	"math"
	"strings"

	"github.com/gnssgo/pppcore/geodetic"
)

const earthRadius = 6378137.0
const earthRotRate = 7.2921151467e-5

// YawNominal computes the nominal yaw angle (spec §4.8), with the
// documented singularity at beta=mu=0.
func YawNominal(beta, mu float64) float64 {
	if math.Abs(beta) < 1e-12 && math.Abs(mu) < 1e-12 {
		return math.Pi
	}
	return math.Atan2(-math.Tan(beta), math.Sin(mu)) + math.Pi
}

// SatelliteAxes computes the satellite-fixed x/y unit vectors used by
// phase-windup and PCV lookups (spec §4.8), from the satellite's ECEF
// position+velocity and the sun direction.
func SatelliteAxes(satPosVel [6]float64, sunPos geodetic.Vec3) (ex, ey geodetic.Vec3, ok bool) {
	// inertial-ish velocity, correcting for earth rotation during light time
	ri := satPosVel
	ri[3] -= earthRotRate * ri[1]
	ri[4] += earthRotRate * ri[0]

	n := cross(geodetic.Vec3{ri[0], ri[1], ri[2]}, geodetic.Vec3{ri[3], ri[4], ri[5]})
	p := cross(sunPos, n)

	es, ok1 := unit(geodetic.Vec3{satPosVel[0], satPosVel[1], satPosVel[2]})
	esun, ok2 := unit(sunPos)
	en, ok3 := unit(n)
	ep, ok4 := unit(p)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return ex, ey, false
	}

	beta := math.Pi/2.0 - math.Acos(clampUnit(geodetic.Dot(esun, en)))
	e := math.Acos(clampUnit(geodetic.Dot(es, ep)))
	var mu float64
	if geodetic.Dot(es, esun) <= 0 {
		mu = math.Pi/2.0 - e
	} else {
		mu = math.Pi/2.0 + e
	}
	if mu < -math.Pi/2.0 {
		mu += 2 * math.Pi
	} else if mu >= math.Pi/2.0 {
		mu -= 2 * math.Pi
	}

	yaw := YawNominal(beta, mu)
	exAxis := cross(en, es)
	cosy, siny := math.Cos(yaw), math.Sin(yaw)
	for i := 0; i < 3; i++ {
		ex[i] = -siny*en[i] + cosy*exAxis[i]
		ey[i] = -cosy*en[i] - siny*exAxis[i]
	}
	return ex, ey, true
}

// TestEclipse zeroes the position of Block IIA satellites currently in
// earth's shadow (spec §4.8), by satellite ID in the supplied positions
// map, returning the set of satellites excluded this epoch.
func TestEclipse(sats []int, pos map[int]geodetic.Vec3, blockType map[int]string, sunPos geodetic.Vec3) map[int]bool {
	excluded := make(map[int]bool)
	esun, ok := unit(sunPos)
	if !ok {
		return excluded
	}
	for _, sat := range sats {
		rs, have := pos[sat]
		if !have {
			continue
		}
		r := rs.Norm()
		if r <= 0.0 {
			continue
		}
		if !strings.Contains(blockType[sat], "BLOCK IIA") {
			continue
		}
		cosa := clampUnit(geodetic.Dot(rs, esun) / r)
		ang := math.Acos(cosa)
		if ang < math.Pi/2.0 || r*math.Sin(ang) > earthRadius {
			continue
		}
		pos[sat] = geodetic.Vec3{}
		excluded[sat] = true
	}
	return excluded
}

// ModelPhaseWindup computes the phase-windup fraction (cycles) for one
// satellite-receiver pair and unwraps it against the previous stored value
// (spec §3 invariant 6: "the newly computed fractional ph replaces the
// stored value plus round(prev-ph)").
func ModelPhaseWindup(satPosVel [6]float64, rcvPos geodetic.Vec3, sunPos geodetic.Vec3, prevPhw float64) (float64, bool) {
	satPos := geodetic.Vec3{satPosVel[0], satPosVel[1], satPosVel[2]}
	exs, eys, ok := SatelliteAxes(satPosVel, sunPos)
	if !ok {
		return prevPhw, false
	}

	r := rcvPos.Sub(satPos)
	ek, ok := unit(r)
	if !ok {
		return prevPhw, false
	}

	geoPos := geodetic.ECEFToGeodetic(rcvPos)
	enu := geodetic.ENURotation(geoPos)
	exr := geodetic.Vec3{enu[1][0], enu[1][1], enu[1][2]} // north
	eyr := geodetic.Vec3{-enu[0][0], -enu[0][1], -enu[0][2]} // west

	eks := cross(ek, eys)
	ekr := cross(ek, eyr)

	var ds, dr geodetic.Vec3
	dotEkExs := geodetic.Dot(ek, exs)
	dotEkExr := geodetic.Dot(ek, exr)
	for i := 0; i < 3; i++ {
		ds[i] = exs[i] - ek[i]*dotEkExs - eks[i]
		dr[i] = exr[i] - ek[i]*dotEkExr + ekr[i]
	}
	dsNorm, drNorm := ds.Norm(), dr.Norm()
	if dsNorm == 0 || drNorm == 0 {
		return prevPhw, false
	}
	cosp := clampUnit(geodetic.Dot(ds, dr) / dsNorm / drNorm)
	ph := math.Acos(cosp) / 2.0 / math.Pi
	drs := cross(ds, dr)
	if geodetic.Dot(ek, drs) < 0.0 {
		ph = -ph
	}
	return ph + math.Floor(prevPhw-ph+0.5), true
}

func cross(a, b geodetic.Vec3) geodetic.Vec3 {
	return geodetic.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func unit(v geodetic.Vec3) (geodetic.Vec3, bool) {
	n := v.Norm()
	if n <= 0 {
		return geodetic.Vec3{}, false
	}
	return v.Scale(1.0 / n), true
}

func clampUnit(x float64) float64 {
	if x < -1.0 {
		return -1.0
	}
	if x > 1.0 {
		return 1.0
	}
	return x
}
