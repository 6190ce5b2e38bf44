package ppp

import "math"

// geometryFree returns lambda1*L1 - lambdaK*Lk (meters), zero if either
// phase or wavelength is missing.
func geometryFree(obs Observation, lam [NumFreq]float64, k int) float64 {
	l1, lk := obs.Freq[0].L, obs.Freq[k].L
	if lam[0] == 0 || lam[k] == 0 || l1 == 0 || lk == 0 {
		return 0
	}
	return lam[0]*l1 - lam[k]*lk
}

// melbourneWubbena returns the wide-lane combination (meters), spec §4.3.
func melbourneWubbena(obs Observation, lam [NumFreq]float64, k int) float64 {
	l1, lk := obs.Freq[0].L, obs.Freq[k].L
	p1, pk := obs.Freq[0].P, obs.Freq[k].P
	lam1, lamk := lam[0], lam[k]
	if lam1 == 0 || lamk == 0 || l1 == 0 || lk == 0 || p1 == 0 || pk == 0 {
		return 0
	}
	return lam1*lamk*(l1-lk)/(lamk-lam1) - (lamk*p1+lam1*pk)/(lam1+lamk)
}

// DetectSlipLLI marks slip[sat,f] whenever the loss-of-lock indicator's low
// two bits are set on a tracked frequency (spec §4.3 "LLI").
func (s *Session) DetectSlipLLI(ep Epoch) {
	nf := s.Opt.NumFreq
	for _, obs := range ep.Obs {
		st := &s.Sats[obs.Sat]
		for f := 0; f < nf && f < NumFreq; f++ {
			fo := obs.Freq[f]
			if fo.L == 0.0 || fo.LLI&3 == 0 {
				continue
			}
			st.Slip[f].Slip = true
			st.Slip[f].LLI = true
		}
	}
}

// wideLaneWavelength returns the Melbourne-Wubbena wide-lane wavelength
// lam1*lamk/(lamk-lam1), the same denominator melbourneWubbena itself uses.
func wideLaneWavelength(lam1, lamk float64) float64 {
	d := lamk - lam1
	if d == 0 {
		return 0
	}
	return lam1 * lamk / d
}

// DetectSlipMW runs the Melbourne-Wubbena detector with the full persisted
// running-statistics algorithm (spec §4.3, supplemented from
// original_source/src/ppp.c's detslp_mw — gnssgo's port only compares the
// latest two samples and keeps no running statistics at all).
func (s *Session) DetectSlipMW(ep Epoch, k int) {
	nf := s.Opt.NumFreq
	for _, obs := range ep.Obs {
		lam := s.Lam[obs.Sat]
		mw := melbourneWubbena(obs, lam, k)
		if mw == 0.0 {
			continue
		}
		st := &s.Sats[obs.Sat]
		lamW := wideLaneWavelength(lam[0], lam[k])

		markSlip := func() {
			for f := 0; f < nf && f < NumFreq; f++ {
				st.Slip[f].Slip = true
				st.Slip[f].MW = true
			}
		}

		reseed := func() {
			st.MWMean = mw
			st.MWMean2 = lamW / 2
			st.MWArc = 1
			st.MWPrev = mw
		}

		// a slip already flagged this epoch (by LLI) resets the running
		// statistics too (original_source/src/ppp.c's detslp_mw).
		if st.Slip[0].Slip || (k < NumFreq && st.Slip[k].Slip) {
			st.MWArc = 0
		}

		if st.MWArc == 0 {
			// first sample ever, or previously reset: seed and continue.
			reseed()
			continue
		}

		if math.Abs(mw-st.MWPrev) > s.Opt.MWGapMax {
			markSlip()
			reseed()
			continue
		}

		if st.MWArc >= 4 {
			thr := math.Min(s.Opt.MWGapMax, math.Max(4*math.Sqrt(st.MWMean2), s.Opt.MWCSMin))
			if math.Abs(mw-st.MWMean) > thr {
				markSlip()
				reseed()
				continue
			}
		}

		n := st.MWArc + 1
		if n > s.Opt.MWArcMax {
			n = s.Opt.MWArcMax
		}
		newMean := ((float64(n-1))*st.MWMean + mw) / float64(n)
		st.MWMean2 = ((float64(n-1))*st.MWMean2 + (mw-st.MWMean)*(mw-st.MWMean)) / float64(n)
		st.MWMean = newMean
		st.MWArc = n
		st.MWPrev = mw
	}
}

// DetectSlipGF runs the geometry-free-combination detector (spec §4.3
// "GF"): a jump marks slip on every tracked frequency, combination-wide.
func (s *Session) DetectSlipGF(ep Epoch, k int) {
	nf := s.Opt.NumFreq
	for _, obs := range ep.Obs {
		g1 := geometryFree(obs, s.Lam[obs.Sat], k)
		if g1 == 0.0 {
			continue
		}
		st := &s.Sats[obs.Sat]
		g0 := st.GF
		st.GF = g1
		if g0 != 0.0 && math.Abs(g1-g0) > s.Opt.ThresSlip {
			for f := 0; f < nf && f < NumFreq; f++ {
				st.Slip[f].Slip = true
				st.Slip[f].GF = true
			}
		}
	}
}

// DetectSlips runs all three detectors for one epoch. Spec §4.3: "MW runs
// before GF; GF runs after MW" — the normative ordering this module
// follows, even though both source trees execute LLI, then GF, then MW.
func (s *Session) DetectSlips(ep Epoch) {
	for _, obs := range ep.Obs {
		s.Sats[obs.Sat].Valid = true
		_ = obs
	}
	s.DetectSlipLLI(ep)
	k := s.Opt.SecondFreqIndex(false)
	s.DetectSlipMW(ep, k)
	s.DetectSlipGF(ep, k)
}
