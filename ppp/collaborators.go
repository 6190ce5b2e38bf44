package ppp

import (
	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
)

// EphemerisProvider is the "broadcast-ephemeris propagation" external
// collaborator named in spec §1: it turns a satellite id + time into a
// geometry/clock fix. Implemented by internal/ephemeris.
type EphemerisProvider interface {
	SatPos(t gtime.Time, sat int) (pos, vel geodetic.Vec3, clkBias, clkDrift, varPos float64, healthy bool)
}

// AntennaModel is the PCV/PCO lookup-table external collaborator named in
// spec §4.2: "navigation tables... PCV tables for receiver and each
// satellite" (spec §6 Inputs). The windup/eclipse/yaw math that consumes
// these offsets is core (C2/C8) and lives in this package, not here.
type AntennaModel interface {
	ReceiverPCO(freq int, azel [2]float64) float64
	SatellitePCO(sat, freq int, satPos, rcvPos geodetic.Vec3, blockType string) float64
}

// AtmosphereModel bundles the troposphere/ionosphere external collaborators
// named in spec §4.5.
type AtmosphereModel interface {
	Tropo(t gtime.Time, pos geodetic.Vec3, azel [2]float64, opt TropOptLike) (delay, dtdx [3]float64, variance float64, ok bool)
	Iono(t gtime.Time, pos geodetic.Vec3, azel [2]float64, sat int, opt IonoOptLike) (delay, variance float64, ok bool)
}

// TropOptLike/IonoOptLike are narrow views into config.ProcOpt so
// internal/atmosphere does not need to import internal/config directly,
// keeping the dependency edge pointing inward from ppp only.
type TropOptLike struct {
	Mode int // mirrors config.TropOpt
}
type IonoOptLike struct {
	Mode int // mirrors config.IonoOpt
}

// TidesModel is the IERS tide-model external collaborator named in spec §1.
type TidesModel interface {
	Displacement(t gtime.Time, rr geodetic.Vec3) geodetic.Vec3
}

// PointPositioner produces the single-point solution Time Update (C4) seeds
// the filter with on the first epoch (spec §4.4).
type PointPositioner interface {
	Solve(epoch Epoch, eph EphemerisProvider, lam [MaxSat + 1][NumFreq]float64) (pos geodetic.Vec3, clockBias [NumClockSys]float64, ok bool)
}

// AmbiguityResolver is the LAMBDA external collaborator named in spec §1:
// only its input/output contract is specified. Implemented by
// internal/ambiguity.
type AmbiguityResolver interface {
	Resolve(floatAmb []float64, cov [][]float64) (fixed []float64, ratio float64, ok bool)
}

// Collaborators bundles every external dependency the estimator core
// consumes through an interface, per spec §1's "accessed only through the
// interfaces named in §6".
type Collaborators struct {
	Ephemeris EphemerisProvider
	Antenna   AntennaModel
	Atmosphere AtmosphereModel
	Tides     TidesModel
	PointPos  PointPositioner
	Ambiguity AmbiguityResolver
	SunMoon   func(t gtime.Time) (sun, moon geodetic.Vec3)
}
