package ppp

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
)

// PPPos is the single entry point named in spec §5: "pppos(state, obs,
// nav) is the single entry point; it is not reentrant with respect to a
// given state." One call processes exactly one epoch end-to-end: slip
// detection → geometry/eclipse/phase windup → time update → iterative
// measurement update → ambiguity resolution → commit.
func (s *Session) PPPos(ep Epoch) Solution {
	s.clearEpochFlags(ep)

	dt := 0.0
	if s.HaveTime {
		dt = ep.Time.Sub(s.PrevTime)
	}

	s.DetectSlips(ep)

	geom := s.resolveGeometry(ep)
	s.applyEclipse(ep, geom)
	s.updatePhaseWindup(ep, geom)

	seedPos, seedClock, dtr := s.seedFromPointSolution(ep, geom)
	s.TimeUpdate(ep, dt, seedPos, seedClock, dtr)

	s.Sol = Solution{Time: ep.Time, Stat: SolSingle}
	s.Iterate(ep, geom)

	var fixed *FixedSolution
	if s.Sol.Stat == SolFloat && s.Collab.Ambiguity != nil {
		fixed = s.resolveAmbiguity(ep)
		if fixed != nil && fixed.Std3D < maxStdFix {
			s.Sol.Stat = SolFix
		}
	}

	s.Commit(ep, fixed)

	if s.Sol.Stat == SolFix && s.TestHoldAmb(5) {
		// fix-and-hold: fold the fixed state back into the float state so
		// future epochs time-update from it (spec §4.7).
		s.holdCommit(fixed)
		s.Sol.Err = ErrNone
	}

	s.PrevTime = ep.Time
	s.HaveTime = true
	return s.Sol
}

// clearEpochFlags resets the per-epoch scratch fields the teacher clears at
// the top of every PPPos call (Vsat, Fix, Slip) before slip detection and
// the measurement loop repopulate them.
func (s *Session) clearEpochFlags(ep Epoch) {
	nf := s.Opt.NumFreq
	for _, obs := range ep.Obs {
		st := &s.Sats[obs.Sat]
		for f := 0; f < nf && f < NumFreq; f++ {
			st.VSat[f] = false
			st.Fix[f] = 0
			st.Slip[f] = SlipBits{}
		}
	}
}

// holdCommit copies a resolved fixed solution's position and integer
// ambiguities back into the float state (spec §4.7's "hold"), so later
// epochs' time update and measurement model continue from the fixed
// values instead of drifting back toward the pre-fix float estimate.
func (s *Session) holdCommit(fixed *FixedSolution) {
	if fixed == nil {
		return
	}
	idx := s.Idx
	s.X[idx.IdxPos(0)] = fixed.Pos[0]
	s.X[idx.IdxPos(1)] = fixed.Pos[1]
	s.X[idx.IdxPos(2)] = fixed.Pos[2]
	for i, j := range fixed.AmbIdx {
		s.X[j] = fixed.AmbValues[i]
	}
}

// resolveGeometry asks the ephemeris collaborator for each observed
// satellite's position/clock, the "broadcast-ephemeris propagation"
// external collaborator named in spec §1.
func (s *Session) resolveGeometry(ep Epoch) map[int]SatGeom {
	geom := make(map[int]SatGeom, len(ep.Obs))
	if s.Collab.Ephemeris == nil {
		return geom
	}
	for _, obs := range ep.Obs {
		pos, vel, clkBias, clkDrift, varPos, healthy := s.Collab.Ephemeris.SatPos(ep.Time, obs.Sat)
		geom[obs.Sat] = SatGeom{
			Sat:       obs.Sat,
			Pos:       pos,
			Vel:       vel,
			ClockBias: clkBias,
			ClockRate: clkDrift,
			VarPos:    varPos,
			Healthy:   healthy,
			BlockType: s.Sats[obs.Sat].BlockType,
		}
	}
	return geom
}

// applyEclipse marks Block-IIA satellites in earth's shadow excluded for
// the epoch (C8, spec §4.8), zeroing their position so the measurement
// model's range check drops them.
func (s *Session) applyEclipse(ep Epoch, geom map[int]SatGeom) {
	if s.Collab.SunMoon == nil {
		return
	}
	sun, _ := s.Collab.SunMoon(ep.Time)

	sats := make([]int, 0, len(geom))
	posMap := make(map[int]geodetic.Vec3, len(geom))
	blockMap := make(map[int]string, len(geom))
	for sat, g := range geom {
		sats = append(sats, sat)
		posMap[sat] = g.Pos
		blockMap[sat] = g.BlockType
	}
	excluded := TestEclipse(sats, posMap, blockMap, sun)
	for sat := range excluded {
		g := geom[sat]
		g.Pos = geodetic.Vec3{}
		g.Excluded = true
		geom[sat] = g
		s.Sats[sat].Eclipsed = true
	}
}

// updatePhaseWindup advances each observed satellite's phase-windup
// accumulator (C8, spec §3 invariant 6) before CorrectObservable consumes
// it. Uses the filter's current position as the receiver-side reference —
// windup varies slowly enough that last epoch's fix is an adequate anchor.
func (s *Session) updatePhaseWindup(ep Epoch, geom map[int]SatGeom) {
	if s.Collab.SunMoon == nil {
		return
	}
	sun, _ := s.Collab.SunMoon(ep.Time)
	idx := s.Idx
	rcvPos := geodetic.Vec3{s.X[idx.IdxPos(0)], s.X[idx.IdxPos(1)], s.X[idx.IdxPos(2)]}
	for _, obs := range ep.Obs {
		g, have := geom[obs.Sat]
		if !have || g.Excluded {
			continue
		}
		satPosVel := [6]float64{g.Pos[0], g.Pos[1], g.Pos[2], g.Vel[0], g.Vel[1], g.Vel[2]}
		st := &s.Sats[obs.Sat]
		if ph, ok := ModelPhaseWindup(satPosVel, rcvPos, sun, st.PhaseWindup); ok {
			st.PhaseWindup = ph
		}
	}
}

// seedFromPointSolution resolves the single-point position/clock seed used
// by the position and clock time-update sub-steps (spec §4.4). Falls back
// to the current filter position when no point positioner is configured
// (e.g. fixed mode, which ignores the seed anyway).
func (s *Session) seedFromPointSolution(ep Epoch, geom map[int]SatGeom) (pos geodetic.Vec3, clock [NumClockSys]float64, dtr [NumClockSys]float64) {
	if s.Collab.PointPos != nil {
		p, ck, ok := s.Collab.PointPos.Solve(ep, s.Collab.Ephemeris, s.Lam)
		if ok {
			pos = p
			clock = ck
			dtr[0] = ck[0] / 299792458.0
			for sys := 1; sys < NumClockSys; sys++ {
				dtr[sys] = dtr[0] + (ck[sys]-ck[0])/299792458.0
			}
			return pos, clock, dtr
		}
	}
	idx := s.Idx
	pos = geodetic.Vec3{s.X[idx.IdxPos(0)], s.X[idx.IdxPos(1)], s.X[idx.IdxPos(2)]}
	for sys := 0; sys < NumClockSys; sys++ {
		dtr[sys] = s.X[idx.IdxClock(sys)] / 299792458.0
	}
	return pos, clock, dtr
}

// resolveAmbiguity calls the LAMBDA collaborator on the current float
// ambiguity block and its covariance sub-matrix (spec §1: "only its
// inputs/outputs are specified"). Returns nil if resolution did not
// succeed.
func (s *Session) resolveAmbiguity(ep Epoch) *FixedSolution {
	idx := s.Idx
	nf := idx.NumBiasFreqs()
	var floatAmb []float64
	var ambIdx []int
	var ambSat, ambFreq []int
	for f := 0; f < nf; f++ {
		for sat := 1; sat <= MaxSat; sat++ {
			j := idx.IdxBias(sat, f)
			if s.X[j] != 0.0 {
				floatAmb = append(floatAmb, s.X[j])
				ambIdx = append(ambIdx, j)
				ambSat = append(ambSat, sat)
				ambFreq = append(ambFreq, f)
			}
		}
	}
	if len(floatAmb) < 4 {
		return nil
	}
	cov := make([][]float64, len(ambIdx))
	for i, gi := range ambIdx {
		cov[i] = make([]float64, len(ambIdx))
		for j, gj := range ambIdx {
			cov[i][j] = s.P.At(gi, gj)
		}
	}
	fixedAmb, ratio, ok := s.Collab.Ambiguity.Resolve(floatAmb, cov)
	if !ok || ratio < 3.0 {
		return nil
	}
	idxPos := [3]int{idx.IdxPos(0), idx.IdxPos(1), idx.IdxPos(2)}
	fixed := &FixedSolution{
		Pos:       geodetic.Vec3{s.X[idxPos[0]], s.X[idxPos[1]], s.X[idxPos[2]]},
		AmbIdx:    ambIdx,
		AmbValues: fixedAmb,
	}
	fixed.Cov[0] = s.P.At(idxPos[0], idxPos[0])
	fixed.Cov[1] = s.P.At(idxPos[1], idxPos[1])
	fixed.Cov[2] = s.P.At(idxPos[2], idxPos[2])
	fixed.Std3D = math.Sqrt(fixed.Cov[0] + fixed.Cov[1] + fixed.Cov[2])
	for i := range ambSat {
		s.Sats[ambSat[i]].Fix[ambFreq[i]] = 2
	}
	return fixed
}
