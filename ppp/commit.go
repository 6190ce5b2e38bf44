package ppp

import (
	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/internal/config"
)

// FixedSolution pairs the integer ambiguities the LAMBDA collaborator hands
// back (spec §6 "AmbiguityResolver") with the filter's float position and
// covariance at the time of resolution; the position is not re-estimated
// with the fixed ambiguities. Commit copies it into the solution record only
// when its 3D position std is under maxStdFix.
type FixedSolution struct {
	Pos    geodetic.Vec3
	Cov    [6]float64
	Std3D  float64

	AmbIdx    []int     // global state indices of the resolved ambiguities
	AmbValues []float64 // fixed integer values, parallel to AmbIdx
}

// Commit finalizes one epoch (C7, spec §4.7): counts valid satellites,
// downgrades to NONE on too few, copies the position/covariance from the
// float or (if supplied and within tolerance) fixed state, rolls lock/
// outage counters, and bumps cumulative slip counters.
func (s *Session) Commit(ep Epoch, fixed *FixedSolution) {
	idx := s.Idx
	nf := s.Opt.NumFreq

	numSats := 0
	for _, obs := range ep.Obs {
		st := &s.Sats[obs.Sat]
		for f := 0; f < nf && f < NumFreq; f++ {
			if !st.VSat[f] {
				continue
			}
			st.Lock[f]++
			st.Outage[f] = 0
			if f == 0 {
				numSats++
			}
		}
	}
	s.Sol.NumSats = numSats
	s.Sol.Time = ep.Time

	if numSats < minNSatSol {
		s.Sol.Stat = SolNone
	}

	if s.Sol.Stat == SolFix && fixed != nil && fixed.Std3D < maxStdFix {
		s.Sol.Pos = fixed.Pos
		s.Sol.Cov = fixed.Cov
	} else {
		s.Sol.Pos = geodetic.Vec3{s.X[idx.IdxPos(0)], s.X[idx.IdxPos(1)], s.X[idx.IdxPos(2)]}
		s.Sol.Cov[0] = s.P.At(idx.IdxPos(0), idx.IdxPos(0))
		s.Sol.Cov[1] = s.P.At(idx.IdxPos(1), idx.IdxPos(1))
		s.Sol.Cov[2] = s.P.At(idx.IdxPos(2), idx.IdxPos(2))
		s.Sol.Cov[3] = s.P.At(idx.IdxPos(0), idx.IdxPos(1))
		s.Sol.Cov[4] = s.P.At(idx.IdxPos(1), idx.IdxPos(2))
		s.Sol.Cov[5] = s.P.At(idx.IdxPos(2), idx.IdxPos(0))
	}

	for sys := 0; sys < NumClockSys; sys++ {
		s.Sol.ClockSV[sys] = s.X[idx.IdxClock(sys)]
	}

	for sat := 1; sat <= MaxSat; sat++ {
		st := &s.Sats[sat]
		for f := 0; f < nf && f < NumFreq; f++ {
			if st.Slip[f].Slip {
				st.SlipCount[f]++
			}
			if st.Fix[f] == 2 && s.Sol.Stat != SolFix {
				st.Fix[f] = 1
			}
		}
	}
}

// nfix tracks consecutive fix-and-hold acceptances; owned by Session so it
// survives across epochs without a package-level global.
type holdState struct {
	nfix int
}

// TestHoldAmb implements spec §4.7's fix-and-hold rule: after minFix
// consecutive epochs with no newly introduced ambiguity pairing, the fixed
// state may be copied back into the float state (grounded on the teacher's
// TestHoldAmb, generalized off its MAXSAT-squared flag matrix onto
// SatState.AmbPairBits).
func (s *Session) TestHoldAmb(minFix int) bool {
	if s.Opt.ARMode != config.ARModeFixAndHold {
		return false
	}
	introducedNew := false
	for i := 1; i <= MaxSat; i++ {
		si := &s.Sats[i]
		if si.Fix[0] != 2 && si.Fix[1] != 2 {
			continue
		}
		for j := 1; j <= MaxSat; j++ {
			sj := &s.Sats[j]
			if sj.Fix[0] != 2 && sj.Fix[1] != 2 {
				continue
			}
			bit := uint64(1) << uint(j%64)
			if si.AmbPairBits&bit == 0 {
				introducedNew = true
			}
			si.AmbPairBits |= bit
			bit2 := uint64(1) << uint(i%64)
			sj.AmbPairBits |= bit2
		}
	}
	if introducedNew {
		s.hold.nfix = 0
		return false
	}
	s.hold.nfix++
	return s.hold.nfix >= minFix
}
