package ppp

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
)

// bdsBlockType maps a BeiDou PRN (1-based) to its generation/orbit-type
// string, used only to select the multipath correction row. Recovered from
// original_source's BDsType table; not carried by the teacher's port.
var bdsBlockType = [46]string{
	"BDS2-G", "BDS2-G", "BDS2-G", "BDS2-G", "BDS2-G", "BDS2-I",
	"BDS2-I", "BDS2-I", "BDS2-I", "BDS2-I", "BDS2-M", "BDS2-M",
	"BDS2-I", "BDS2-M", "", "BDS2-I", "", "BDS2-G",
	"BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M",
	"BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M",
	"BDS3-I", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M",
	"BDS3-M", "BDS3-I", "BDS3-I", "BDS3-I", "BDS3-M", "BDS3-M",
	"BDS3-M", "BDS3-M", "BDS3-M", "BDS3-M",
}

// bds2MultipathCoef is the elevation-bin (10deg steps, 0..90) by
// block-type*freq (BDS2-I, BDS2-M/G, each over B1/B2/B3) pseudorange
// multipath correction table, meters. Recovered from original_source's
// corr_bds2_multipath; the BeiDou multipath correction named in spec §4.2
// has no implementation anywhere in the teacher's port.
var bds2MultipathCoef = [10][6]float64{
	{-0.55, -0.71, -0.27, -0.47, -0.40, -0.22},
	{-0.40, -0.36, -0.23, -0.38, -0.31, -0.15},
	{-0.34, -0.33, -0.21, -0.32, -0.26, -0.13},
	{-0.23, -0.19, -0.15, -0.23, -0.18, -0.10},
	{-0.15, -0.14, -0.11, -0.11, -0.06, -0.04},
	{-0.04, -0.03, -0.04, 0.06, 0.09, 0.05},
	{0.09, 0.08, 0.05, 0.34, 0.28, 0.14},
	{0.19, 0.17, 0.14, 0.69, 0.48, 0.27},
	{0.27, 0.24, 0.19, 0.97, 0.64, 0.36},
	{0.35, 0.33, 0.32, 1.05, 0.69, 0.47},
}

// BDS2Multipath returns the elevation-dependent pseudorange correction
// (meters) for frequency f (0,1,2 => B1/B2/B3) of a BeiDou-2 satellite, or
// 0 if prn is not a BDS-2 I/M/G satellite.
func BDS2Multipath(prn int, f int, elevRad float64) float64 {
	if prn < 1 || prn > 46 || f < 0 || f > 2 {
		return 0
	}
	var nType int
	switch bdsBlockType[prn-1] {
	case "BDS2-I":
		nType = 1
	case "BDS2-M", "BDS2-G":
		nType = 2
	default:
		return 0
	}
	elevDeg := elevRad * 180.0 / math.Pi
	col := (nType-1)*3 + f
	switch {
	case elevDeg <= 0.0:
		return bds2MultipathCoef[0][col]
	case elevDeg >= 90.0:
		return bds2MultipathCoef[9][col]
	default:
		idx := int(elevDeg / 10.0)
		if idx >= 9 {
			idx = 8
		}
		alpha := (bds2MultipathCoef[idx+1][col] - bds2MultipathCoef[idx][col]) / 10.0
		return alpha*(elevDeg-float64(idx)*10.0) + bds2MultipathCoef[idx][col]
	}
}

// CorrectedObs holds one satellite's per-frequency corrected phase/code
// (meters) plus the iono-free combination, the output of CorrectObservable
// (spec §4.2).
type CorrectedObs struct {
	L, P   [NumFreq]float64
	Lc, Pc float64
}

// CorrectObservable applies antenna PCO, phase-windup, BeiDou-2 multipath
// and DCB corrections to one satellite's raw observation, then forms the
// iono-free linear combination (spec §4.2). satPos/rcvPos are ECEF meters;
// sys is the raw system flag (SysGPS etc); isGalSbsBds selects the
// GAL/SBS/CMP frequency pairing.
func (s *Session) CorrectObservable(obs Observation, sys int, satPos, rcvPos geodetic.Vec3, blockType string, phw float64, dcbP2 float64) CorrectedObs {
	var out CorrectedObs
	lam := s.Lam[obs.Sat]
	azel := [2]float64{s.Sats[obs.Sat].Az, s.Sats[obs.Sat].El}

	isGalSbsBds := sys == SysGAL || sys == SysSBS || sys == SysCMP

	for i := 0; i < NumFreq; i++ {
		fo := obs.Freq[i]
		if lam[i] == 0.0 || fo.L == 0.0 || fo.P == 0.0 {
			continue
		}
		dantr, dants := 0.0, 0.0
		if s.Collab.Antenna != nil {
			dantr = s.Collab.Antenna.ReceiverPCO(i, azel)
			dants = s.Collab.Antenna.SatellitePCO(obs.Sat, i, satPos, rcvPos, blockType)
		}
		out.L[i] = fo.L*lam[i] - dants - dantr - phw*lam[i]
		out.P[i] = fo.P - dants - dantr

		if sys == SysCMP {
			prn := obs.Sat - clockSysPrnBase(SysCMP)
			out.P[i] += BDS2Multipath(prn, i, azel[1])
		}
		if i == 1 {
			out.P[i] += dcbP2
		}
	}

	k := s.Opt.SecondFreqIndex(isGalSbsBds)
	if k <= 0 || k >= NumFreq {
		return out
	}
	if lam[0] == 0.0 || lam[k] == 0.0 {
		return out
	}
	c1 := lam[k] * lam[k] / (lam[k]*lam[k] - lam[0]*lam[0])
	c2 := -lam[0] * lam[0] / (lam[k]*lam[k] - lam[0]*lam[0])
	if out.L[0] != 0.0 && out.L[k] != 0.0 {
		out.Lc = c1*out.L[0] + c2*out.L[k]
	}
	if out.P[0] != 0.0 && out.P[k] != 0.0 {
		out.Pc = c1*out.P[0] + c2*out.P[k]
	}
	return out
}

// clockSysPrnBase is a placeholder PRN-numbering offset; real satellite
// numbering is owned by the ephemeris collaborator's satellite table, not
// reimplemented here. BeiDou PRNs in this package's satellite id space
// start immediately after GPS+SBAS+GLONASS+Galileo+QZSS.
func clockSysPrnBase(sys int) int {
	switch sys {
	case SysCMP:
		return 160
	default:
		return 0
	}
}
