// Package antenna implements the PCV/PCO lookup-table external
// collaborator named in the estimator spec §4.2/§6: per-frequency antenna
// phase-center offsets for the receiver and each satellite, interpolated
// over elevation the way the teacher's AntModel/SatAntOffset do. ANTEX file
// decoding itself is out of scope (spec §1); this package only consumes
// already-parsed tables.
package antenna

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
)

// PCV is one antenna's phase-center variation table: a boresight-angle
// grid (degrees, fixed step) of per-frequency corrections (m), plus a
// constant phase-center offset (m) in the antenna's own frame.
type PCV struct {
	Offset [3][3]float64 // [freq][x,y,z] PCO, antenna frame (m)
	Zen1, Zen2, DZen float64
	Variation [3][]float64 // [freq][zenith bin] PCV (m)
}

// Model holds the receiver's antenna table plus one table per satellite
// block type (keyed by the block-type string, e.g. "BLOCK IIA"), the
// shape spec §4.2 calls "PCV tables for receiver and each satellite".
type Model struct {
	Receiver    PCV
	RcvDelta    geodetic.Vec3 // antenna eccentricity, ENU (m)
	BySatBlock  map[string]PCV
}

// NewModel builds an empty antenna table; callers populate Receiver/
// RcvDelta/BySatBlock from their own ANTEX parser.
func NewModel() *Model {
	return &Model{BySatBlock: make(map[string]PCV)}
}

// ReceiverPCO implements ppp.AntennaModel: returns the receiver antenna's
// line-of-sight-projected phase-center correction (m) for frequency freq
// at azel={az,el} (rad), grounded on the teacher's AntModel.
func (m *Model) ReceiverPCO(freq int, azel [2]float64) float64 {
	if freq < 0 || freq > 2 {
		return 0
	}
	pco := m.Receiver.Offset[freq]
	// project the ENU offset (antenna eccentricity + PCO z-up convention)
	// onto the line of sight, then add the elevation-dependent PCV term.
	el := azel[1]
	cosEl, sinEl := math.Cos(el), math.Sin(el)
	az := azel[0]
	sinAz, cosAz := math.Sin(az), math.Cos(az)
	los := geodetic.Vec3{sinAz * cosEl, cosAz * cosEl, sinEl}
	enuOffset := geodetic.Vec3{m.RcvDelta[0] + pco[0], m.RcvDelta[1] + pco[1], m.RcvDelta[2] + pco[2]}
	dot := geodetic.Dot(los, enuOffset)
	return dot + interpPCV(m.Receiver.Variation[freq], m.Receiver.Zen1, m.Receiver.Zen2, m.Receiver.DZen, el)
}

// SatellitePCO implements ppp.AntennaModel: returns satellite sat's
// boresight-angle-interpolated phase-center correction (m) for frequency
// freq, looked up by block type (grounded on the teacher's SatAntOffset).
func (m *Model) SatellitePCO(sat, freq int, satPos, rcvPos geodetic.Vec3, blockType string) float64 {
	if freq < 0 || freq > 2 {
		return 0
	}
	pcv, ok := m.BySatBlock[blockType]
	if !ok {
		return 0
	}
	los := rcvPos.Sub(satPos)
	r := los.Norm()
	if r == 0 {
		return 0
	}
	cosNadir := -geodetic.Dot(los, satPos) / (r * satPos.Norm())
	if cosNadir > 1 {
		cosNadir = 1
	} else if cosNadir < -1 {
		cosNadir = -1
	}
	nadir := math.Acos(cosNadir) * 180.0 / math.Pi
	el := 90.0 - nadir
	return pcv.Offset[freq][2] + interpPCV(pcv.Variation[freq], pcv.Zen1, pcv.Zen2, pcv.DZen, el*math.Pi/180.0)
}

// interpPCV linearly interpolates the zenith/nadir-angle PCV grid at
// elevation el (rad), clamping to the grid's ends outside its domain.
func interpPCV(grid []float64, zen1, zen2, dzen float64, el float64) float64 {
	if len(grid) == 0 || dzen == 0 {
		return 0
	}
	zenDeg := 90.0 - el*180.0/math.Pi
	if zenDeg <= zen1 {
		return grid[0]
	}
	if zenDeg >= zen2 {
		return grid[len(grid)-1]
	}
	idx := (zenDeg - zen1) / dzen
	i := int(idx)
	if i >= len(grid)-1 {
		return grid[len(grid)-1]
	}
	frac := idx - float64(i)
	return grid[i]*(1-frac) + grid[i+1]*frac
}
