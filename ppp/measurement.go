package ppp

import (
	"math"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/internal/config"
)

// SatGeom is one satellite's geometric/clock fix for the current epoch —
// the subset of the ephemeris collaborator's output the measurement model
// needs (spec §4.5), plus the Sagnac-corrected-range inputs.
type SatGeom struct {
	Sat                  int
	Pos, Vel             geodetic.Vec3 // ECEF, m / m/s
	ClockBias, ClockRate float64       // s, s/s
	VarPos               float64       // orbit/clock variance, m^2
	Healthy              bool
	BlockType            string
	Excluded             bool // URA/SVH/user-listed/eclipse exclusion already decided upstream
}

const (
	maxIter      = 8
	thresReject  = 4.0
	minNSatSol   = 4
	maxStdFix    = 0.15
	efactGPS     = 1.0
	efactGLO     = 1.5
	efactSBS     = 3.0
	efactGPSL5   = 1.5
	eratioCode   = 100.0 // code-measurement error relative to phase (teacher's opt.eratio)
)

// measRow is one scalar measurement's design row plus bookkeeping needed
// to feed post-fit outlier rejection and per-sat diagnostics (C5's internal
// form of spec §4.5 before assembly into dense H/v/R).
type measRow struct {
	sat, freq int
	isPhase   bool
	residual  float64
	variance  float64
	row       map[int]float64 // sparse design coefficients, keyed by state index
}

// BuildMeasurements assembles the design rows for one EKF iteration (C5).
// post selects pre-fit (false) or post-fit (true) mode, which changes only
// the outlier-rejection policy (spec §4.5). excluded names satellites to
// skip entirely (already rejected this epoch, by pre-fit outlier or
// upstream exclusion). x is the state to linearize around — the snapshot
// the EKF iteration is working from, not necessarily s.X.
func (s *Session) BuildMeasurements(ep Epoch, geom map[int]SatGeom, x []float64, post bool, excluded map[int]bool) (rows []measRow, rejectSat int, rejectFreq int, rejected bool) {
	idx := s.Idx
	rr := geodetic.Vec3{x[idx.IdxPos(0)], x[idx.IdxPos(1)], x[idx.IdxPos(2)]}
	pos := geodetic.ECEFToGeodetic(rr)

	nf := idx.NumBiasFreqs()
	var worstAbs, worstSigma float64
	worstIdx := -1

	for _, obs := range ep.Obs {
		sat := obs.Sat
		if excluded[sat] {
			continue
		}
		g, have := geom[sat]
		if !have || !g.Healthy || g.Excluded {
			continue
		}
		r, e := geodetic.GeometricRange(g.Pos, rr)
		if r <= 0 {
			continue
		}
		az, el := geodetic.AzEl(pos, e)
		if el < s.Opt.ElevationMask {
			continue
		}
		st := &s.Sats[sat]
		st.Az, st.El = az, el
		for f := 0; f < NumFreq; f++ {
			st.SNR[f] = obs.Freq[f].SNR
		}

		sys := satSysOf(sat)

		var dtrp, vartrp float64
		var dtdx [3]float64
		if s.Collab.Atmosphere != nil {
			d, dx, vv, ok := s.Collab.Atmosphere.Tropo(ep.Time, rr, [2]float64{az, el}, TropOptLike{Mode: int(s.Opt.TropOpt)})
			if !ok {
				continue
			}
			dtrp, dtdx, vartrp = d[0], dx, vv
		}

		corrected := s.CorrectObservable(obs, sys, g.Pos, rr, g.BlockType, st.PhaseWindup, 0)

		for j := 0; j < 2*nf && j < 2*NumFreq; j++ {
			freq := j / 2
			isPhase := j%2 == 0

			var y float64
			var cIono float64
			switch {
			case s.Opt.IonoOpt == config.IonoIFLC:
				if isPhase {
					y = corrected.Lc
				} else {
					y = corrected.Pc
				}
			default:
				if isPhase {
					y = corrected.L[freq]
				} else {
					y = corrected.P[freq]
				}
				lam := s.Lam[sat]
				if y == 0.0 || lam[0] == 0.0 || lam[freq] == 0.0 {
					continue
				}
				ratio := lam[freq] / lam[0]
				cIono = ratio * ratio
				if isPhase {
					cIono = -cIono
				}
			}
			if y == 0.0 {
				continue
			}

			var dion, vion float64
			if s.Opt.IonoOpt != config.IonoIFLC && !idx.HasIono() && s.Collab.Atmosphere != nil {
				d, vv, ok := s.Collab.Atmosphere.Iono(ep.Time, rr, [2]float64{az, el}, sat, IonoOptLike{Mode: int(s.Opt.IonoOpt)})
				if !ok {
					continue
				}
				dion, vion = d, vv
			}

			row := make(map[int]float64, 8)
			for a := 0; a < 3; a++ {
				row[idx.IdxPos(a)] = -e[a]
			}
			clkIdx := idx.IdxClock(ClockSysIndex(sys))
			row[clkIdx] = 1.0
			cdtr := x[clkIdx]

			if idx.NumTropParams() > 0 {
				ng := 1
				if idx.NumTropParams() == 3 {
					ng = 3
				}
				for t := 0; t < ng; t++ {
					row[idx.IdxTropWet()+t] = dtdx[t]
				}
			}

			var dcb float64
			if idx.HasIono() {
				ii := idx.IdxIono(sat)
				if x[ii] == 0.0 {
					continue
				}
				dion = x[ii]
				row[ii] = cIono
			}
			if idx.HasDCB() && freq == 2 && !isPhase {
				dcb = x[idx.IdxDCB()]
				row[idx.IdxDCB()] = 1.0
			}
			var bias float64
			biasFreq := freq
			if s.Opt.IonoOpt == config.IonoIFLC {
				biasFreq = 0
			}
			if isPhase {
				bi := idx.IdxBias(sat, biasFreq)
				if bias = x[bi]; bias == 0.0 {
					continue
				}
				row[bi] = 1.0
			}

			pred := r + cdtr - g.ClockBias*299792458.0 + dtrp + cIono*dion + dcb + bias
			v := y - pred

			st.ResPrefit[freq] = v

			variance := s.measVariance(sys, el, st.SNR[freq], freq, isPhase) + vartrp + cIono*cIono*vion + g.VarPos
			if sys == SysGLO && !isPhase {
				variance += VarGloIFB
			}

			if !post && s.Opt.MaxInno > 0 && math.Abs(v) > s.Opt.MaxInno {
				excluded[sat] = true
				if isPhase {
					st.RejPhase++
				} else {
					st.RejCode++
				}
				continue
			}

			if post {
				sigma := math.Sqrt(variance)
				if math.Abs(v) > thresReject*sigma {
					if worstIdx < 0 || math.Abs(v) > worstAbs {
						worstAbs, worstSigma = math.Abs(v), sigma
						worstIdx = len(rows)
						rejectSat, rejectFreq = sat, freq
					}
				}
				st.ResPostfit[freq] = v
			}

			if isPhase {
				st.VSat[freq] = true
			}
			rows = append(rows, measRow{sat: sat, freq: freq, isPhase: isPhase, residual: v, variance: variance, row: row})
		}
	}
	_ = worstSigma
	if post && worstIdx >= 0 {
		return rows, rejectSat, rejectFreq, true
	}
	return rows, 0, 0, false
}

// measVariance implements spec §4.5's elevation-weighted / SNR-weighted
// variance model, scaled 9x under iono-free combination (grounded on the
// teacher's PPPVarianceErr).
func (s *Session) measVariance(sys int, el, snr float64, freq int, isPhase bool) float64 {
	fact := 1.0
	if !isPhase {
		fact *= eratioCode
	}
	switch sys {
	case SysGLO:
		fact *= efactGLO
	case SysSBS:
		fact *= efactSBS
	default:
		fact *= efactGPS
	}
	if (sys == SysGPS || sys == SysQZS) && freq == 2 {
		fact *= efactGPSL5
	}
	if s.Opt.IonoOpt == config.IonoIFLC {
		fact *= 3.0
	}

	if s.Opt.WeightBySNR && snr > 0 {
		d := s.Opt.SNRMax - snr
		if d < 0 {
			d = 0
		}
		a := fact * s.Opt.ErrA
		return a * a * math.Pow(10.0, 0.1*d)
	}
	sinel := math.Sin(el)
	a, b := fact*s.Opt.ErrA, fact*s.Opt.ErrB
	return a*a + b*b/(sinel*sinel)
}
