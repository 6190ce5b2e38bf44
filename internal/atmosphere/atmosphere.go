// Package atmosphere implements the troposphere/ionosphere correction
// external collaborator named in the estimator spec §4.5/§6: the
// Saastamoinen tropospheric model, returned for every troposphere option
// (there is no SBAS or external-ZTD model here), and the Klobuchar
// broadcast ionospheric model, used for the broadcast option only; the
// SBAS/TEC/STEC options get a zero delay. The estimated-state (EST/ESTG) and iono-free (IFLC) branches
// are handled inside the `ppp` package itself (they read the filter state
// directly), so this package only serves the non-estimated branches.
package atmosphere

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
	"github.com/gnssgo/pppcore/ppp"
)

// Model is the stateless atmosphere collaborator; Klobuchar coefficients
// are supplied per call since they come from the broadcast nav message
// (out of scope to decode here).
type Model struct {
	Klobuchar [8]float64 // alpha0..3, beta0..3; zero-value disables BRDC iono
}

// mapf is the cotangent-style Saastamoinen mapping function, grounded on
// the teacher's TropModel/SbsTropCorr.
func mapf(el float64) (mh, mw float64) {
	sinel := math.Sin(el)
	if sinel < 1e-4 {
		sinel = 1e-4
	}
	return 1.0001 / math.Sqrt(0.002001+sinel*sinel), 1.0 / sinel
}

// Tropo implements ppp.AtmosphereModel. Mode EST/ESTG is not handled here
// — that estimated-mapping branch is computed in the ppp package directly
// against filter state — so this returns the Saastamoinen a-priori value
// for those modes too, usable as the C4 time-update seed.
func (m *Model) Tropo(t gtime.Time, pos geodetic.Vec3, azel [2]float64, opt ppp.TropOptLike) (delay, dtdx [3]float64, variance float64, ok bool) {
	geo := geodetic.ECEFToGeodetic(pos)
	el := azel[1]
	if el <= 0 {
		return delay, dtdx, 0, false
	}
	h := geo[2]
	if h < 0 {
		h = 0
	} else if h > 1e4 {
		return delay, dtdx, 0, false
	}
	pressure := 1013.25 * math.Pow(1.0-2.2557e-5*h, 5.2568)
	temp := 15.0 - 6.5e-3*h + 273.16
	humid := 0.7
	e := 6.108 * math.Exp((17.15*temp-4684.0)/(temp-38.45)) * humid

	zhd := 0.0022768 * pressure / (1.0 - 0.00266*math.Cos(2*geo[0]) - 0.00028*h/1000.0)
	zwd := 0.002277 * (1255.0/temp + 0.05) * e

	mh, mw := mapf(el)
	delay[0] = mh*zhd + mw*zwd
	variance = 0.09 // ERR_SAAS^2-ish budget for the a-priori term

	az, cotEl := azel[0], 1.0/math.Tan(el)
	dtdx[0] = mw
	dtdx[1] = mw * cotEl * math.Cos(az) // north gradient sensitivity
	dtdx[2] = mw * cotEl * math.Sin(az) // east gradient sensitivity
	return delay, dtdx, variance, true
}

// Iono implements ppp.AtmosphereModel for the Klobuchar broadcast model
// (mode BRDC) and a zero SBAS/TEC/STEC stand-in elsewhere — those need
// live correction messages this package does not decode.
func (m *Model) Iono(t gtime.Time, pos geodetic.Vec3, azel [2]float64, sat int, opt ppp.IonoOptLike) (delay, variance float64, ok bool) {
	const ionoBroadcast = 1 // config.IonoBroadcast
	if opt.Mode != ionoBroadcast {
		return 0, 0, true
	}
	if m.Klobuchar == [8]float64{} {
		return 0, 0, false
	}
	geo := geodetic.ECEFToGeodetic(pos)
	el, az := azel[1], azel[0]
	psi := 0.0137/(el/math.Pi+0.11) - 0.022

	latI := geo[0]/math.Pi + psi*math.Cos(az)
	if latI > 0.416 {
		latI = 0.416
	} else if latI < -0.416 {
		latI = -0.416
	}
	lonI := geo[1]/math.Pi + psi*math.Sin(az)/math.Cos(latI*math.Pi)

	_, tow := t.GPS()
	latM := latI + 0.064*math.Cos((lonI-1.617)*math.Pi)

	tt := tow + lonI*43200.0
	tt -= math.Floor(tt/86400.0) * 86400.0

	f := 1.0 + 16.0*math.Pow(0.53-el/math.Pi, 3)

	amp := m.Klobuchar[0] + latM*(m.Klobuchar[1]+latM*(m.Klobuchar[2]+latM*m.Klobuchar[3]))
	per := m.Klobuchar[4] + latM*(m.Klobuchar[5]+latM*(m.Klobuchar[6]+latM*m.Klobuchar[7]))
	if amp < 0 {
		amp = 0
	}
	if per < 72000.0 {
		per = 72000.0
	}
	x := 2.0 * math.Pi * (tt - 50400.0) / per

	const cLight = 299792458.0
	var dion float64
	if math.Abs(x) < 1.57 {
		dion = cLight * f * (5e-9 + amp*(1.0-x*x/2.0+x*x*x*x/24.0))
	} else {
		dion = cLight * f * 5e-9
	}
	return dion, (dion * 0.5) * (dion * 0.5), true
}
