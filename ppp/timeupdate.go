package ppp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
	"github.com/gnssgo/pppcore/internal/config"
	"github.com/gnssgo/pppcore/internal/kalman"
)

// Initial parameter variances, spec §4.4 (grounded on the teacher's
// VAR_POS/VAR_VEL/... constants in src/ppp.go).
const (
	VarPos    = 60.0 * 60.0
	VarVel    = 10.0 * 10.0
	VarAcc    = 10.0 * 10.0
	VarClk    = 60.0 * 60.0
	VarZTD    = 0.6 * 0.6
	VarGrad   = 0.01 * 0.01
	VarDCB    = 30.0 * 30.0
	VarBias   = 60.0 * 60.0
	VarIono   = 60.0 * 60.0
	VarGloIFB = 0.6 * 0.6
)

// TimeUpdate advances the filter one epoch (C4, spec §4.4): position,
// clocks, troposphere, ionosphere, DCB, then ambiguities in that order. dt
// is the elapsed time since the previous committed epoch (seconds); seed
// is the single-point position/clock solution used to initialize the
// filter on its first epoch or whenever kinematic-no-dynamics mode forces a
// fresh position every epoch.
func (s *Session) TimeUpdate(ep Epoch, dt float64, seedPos geodetic.Vec3, seedClock [NumClockSys]float64, dtr [NumClockSys]float64) {
	s.updatePosition(dt, seedPos)
	s.updateClocks(dtr)
	s.updateTrop(ep, dt)
	if s.Idx.HasIono() {
		s.updateIono(ep, dt)
	}
	if s.Idx.HasDCB() {
		s.updateDCB()
	}
	s.updateBias(ep, dt)
}

func (s *Session) updatePosition(dt float64, seedPos geodetic.Vec3) {
	idx := s.Idx
	if s.Opt.Mode == config.ModeFixed {
		for a := 0; a < 3; a++ {
			kalman.Reinit(s.X, s.P, idx.IdxPos(a), s.Opt.FixedPos[a], 1e-8)
		}
		return
	}

	posNorm := s.X[idx.IdxPos(0)]*s.X[idx.IdxPos(0)] + s.X[idx.IdxPos(1)]*s.X[idx.IdxPos(1)] + s.X[idx.IdxPos(2)]*s.X[idx.IdxPos(2)]
	if posNorm <= 0.0 {
		for a := 0; a < 3; a++ {
			kalman.Reinit(s.X, s.P, idx.IdxPos(a), seedPos[a], VarPos)
		}
		if idx.HasDynamics() {
			for a := 0; a < 3; a++ {
				kalman.Reinit(s.X, s.P, idx.IdxVel(a), 0.0, VarVel)
				kalman.Reinit(s.X, s.P, idx.IdxAccel(a), 1e-6, VarAcc)
			}
		}
	}

	switch {
	case s.Opt.Mode == config.ModeStatic:
		for a := 0; a < 3; a++ {
			i := idx.IdxPos(a)
			kalman.InflateDiag(s.P, i, s.Opt.ProcessNoisePos*s.Opt.ProcessNoisePos*math.Abs(dt))
		}
		return
	case !idx.HasDynamics():
		for a := 0; a < 3; a++ {
			kalman.Reinit(s.X, s.P, idx.IdxPos(a), seedPos[a], VarPos)
		}
		return
	}

	// full-dynamics mode: propagate position/velocity/acceleration.
	active := make([]int, 0, 9)
	for i := 0; i < idx.NumPositionParams(); i++ {
		if s.X[i] != 0.0 && s.P.At(i, i) > 0.0 {
			active = append(active, i)
		}
	}
	if len(active) < 9 {
		return
	}
	n := len(active)
	f := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		f.Set(i, i, 1.0)
	}
	for i := 0; i < 6; i++ {
		f.Set(i, i+3, dt)
	}
	for i := 0; i < 3; i++ {
		f.Set(i, i+6, dt*dt/2.0)
	}
	kalman.PropagateLinear(s.X, s.P, active, f, nil)

	pos := geodetic.ECEFToGeodetic(geodetic.Vec3{s.X[idx.IdxPos(0)], s.X[idx.IdxPos(1)], s.X[idx.IdxPos(2)]})
	var qenu [3][3]float64
	qenu[0][0] = s.Opt.ProcessNoiseAccH * s.Opt.ProcessNoiseAccH * math.Abs(dt)
	qenu[1][1] = qenu[0][0]
	qenu[2][2] = s.Opt.ProcessNoiseAccV * s.Opt.ProcessNoiseAccV * math.Abs(dt)
	qecef := geodetic.CovENUToECEF(pos, qenu)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			gi, gj := idx.IdxAccel(i), idx.IdxAccel(j)
			if gj >= gi {
				s.P.SetSym(gi, gj, s.P.At(gi, gj)+qecef[i][j])
			}
		}
	}
}

// updateClocks reinitializes every per-system clock to white noise each
// epoch (spec §4.4 "Clocks"). dtr[0] is the base receiver clock offset
// (seconds); dtr[sys] for sys>0 carries the inter-system bias already
// summed in, matching the source's EPHOPT_PREC branch.
func (s *Session) updateClocks(dtr [NumClockSys]float64) {
	const cLight = 299792458.0
	for sys := 0; sys < NumClockSys; sys++ {
		kalman.Reinit(s.X, s.P, s.Idx.IdxClock(sys), cLight*dtr[sys], VarClk)
	}
}

func (s *Session) updateTrop(ep Epoch, dt float64) {
	if s.Idx.NumTropParams() == 0 {
		return
	}
	idx := s.Idx
	i := idx.IdxTropWet()
	if s.X[i] == 0.0 {
		pos := geodetic.ECEFToGeodetic(geodetic.Vec3{s.X[idx.IdxPos(0)], s.X[idx.IdxPos(1)], s.X[idx.IdxPos(2)]})
		ztd, vari := saastamoinenZWD(pos)
		kalman.Reinit(s.X, s.P, i, ztd, vari)
		if idx.NumTropParams() == 3 {
			for a := 0; a < 2; a++ {
				kalman.Reinit(s.X, s.P, idx.IdxTropGrad(a), 1e-6, VarGrad)
			}
		}
		return
	}
	kalman.InflateDiag(s.P, i, s.Opt.ProcessNoiseTrop*s.Opt.ProcessNoiseTrop*math.Abs(dt))
	if idx.NumTropParams() == 3 {
		g := 0.1 * s.Opt.ProcessNoiseTrop
		for a := 0; a < 2; a++ {
			kalman.InflateDiag(s.P, idx.IdxTropGrad(a), g*g*math.Abs(dt))
		}
	}
}

// saastamoinenZWD is the a-priori zenith-wet-delay seed (spec §4.4's
// "Saastamoinen a-priori model"); ERR_SAAS = 0.3 m std in the teacher
// source's commented-out constant.
func saastamoinenZWD(pos geodetic.Vec3) (ztd, vari float64) {
	const errSaas = 0.3
	h := pos[2]
	if h < 0 {
		h = 0
	}
	pressure := 1013.25 * math.Pow(1.0-2.2557e-5*h, 5.2568)
	temp := 15.0 - 6.5e-3*h + 273.16
	e := 6.108 * math.Exp((17.15*temp-4684.0)/(temp-38.45)) * 0.7
	zwd := 0.002277 * (1255.0/temp + 0.05) * e
	_ = pressure
	return zwd, errSaas * errSaas
}

func (s *Session) updateIono(ep Epoch, dt float64) {
	idx := s.Idx
	gap := s.Opt.GapResionEp
	for sat := 1; sat <= MaxSat; sat++ {
		j := idx.IdxIono(sat)
		if s.X[j] != 0.0 && s.Sats[sat].Outage[0] > gap {
			kalman.Deactivate(s.X, s.P, j)
		}
	}
	for _, obs := range ep.Obs {
		sat := obs.Sat
		j := idx.IdxIono(sat)
		if s.X[j] != 0.0 {
			el := s.Sats[sat].El
			if el < 5.0*math.Pi/180.0 {
				el = 5.0 * math.Pi / 180.0
			}
			sinel := math.Sin(el)
			kalman.InflateDiag(s.P, j, (s.Opt.ProcessNoiseIono/sinel)*(s.Opt.ProcessNoiseIono/sinel)*math.Abs(dt))
			continue
		}
		lam := s.Lam[sat]
		p1, p2 := obs.Freq[0].P, obs.Freq[1].P
		if p1 == 0.0 || p2 == 0.0 || lam[0] == 0.0 || lam[1] == 0.0 {
			continue
		}
		ratio := lam[1] / lam[0]
		ion := (p1 - p2) / (1.0 - ratio*ratio)
		kalman.Reinit(s.X, s.P, j, ion, VarIono)
	}
}

func (s *Session) updateDCB() {
	i := s.Idx.IdxDCB()
	if s.X[i] == 0.0 {
		kalman.Reinit(s.X, s.P, i, 1e-6, VarDCB)
	}
}

// updateBias implements spec §4.4's "Ambiguities" sub-update: outage/AR/
// day-boundary deactivation, inflation, phase-code coherence correction,
// then per-satellite reinitialization on slip.
func (s *Session) updateBias(ep Epoch, dt float64) {
	idx := s.Idx
	nf := idx.NumBiasFreqs()

	dayJump := isDayBoundary(ep.Time)

	for f := 0; f < nf; f++ {
		for sat := 1; sat <= MaxSat; sat++ {
			st := &s.Sats[sat]
			st.Outage[f]++
			j := idx.IdxBias(sat, f)
			if st.Outage[f] > s.Opt.MaxOutage || s.Opt.ARMode == config.ARModeInstantaneous || dayJump {
				kalman.Deactivate(s.X, s.P, j)
			}
		}

		type biasObs struct {
			sat  int
			bias float64
			slip bool
		}
		biases := make([]biasObs, 0, len(ep.Obs))
		var offsetSum float64
		var offsetN int
		var offsets []float64

		for _, obs := range ep.Obs {
			sat := obs.Sat
			j := idx.IdxBias(sat, f)
			var bias float64
			var slip bool

			lam := s.Lam[sat]
			if s.Opt.IonoOpt == config.IonoIFLC {
				corrected := s.CorrectObservable(obs, satSysOf(sat), geodetic.Vec3{}, geodetic.Vec3{}, s.Sats[sat].BlockType, s.Sats[sat].PhaseWindup, 0)
				bias = corrected.Lc - corrected.Pc
				slip = s.Sats[sat].Slip[0].Slip || s.Sats[sat].Slip[1].Slip
			} else {
				fo := obs.Freq[f]
				if fo.L == 0.0 || fo.P == 0.0 || lam[f] == 0.0 {
					continue
				}
				p1, pf := obs.Freq[0].P, obs.Freq[f].P
				if p1 == 0.0 || pf == 0.0 || lam[0] == 0.0 {
					continue
				}
				ratio := lam[f] / lam[0]
				ion := (p1 - pf) / (1.0 - ratio*ratio)
				bias = fo.L*lam[f] - fo.P + 2.0*ion*ratio*ratio
				slip = s.Sats[sat].Slip[f].Slip
			}
			if bias == 0.0 {
				continue
			}
			biases = append(biases, biasObs{sat, bias, slip})
			if s.X[j] != 0.0 && !slip {
				offset := bias - s.X[j]
				offsetSum += offset
				offsetN++
				offsets = append(offsets, offset)
			}
		}

		// phase-code jump correction (spec §4.4; Open Question 2: sign
		// guard made |.|-based per the documented choice).
		if offsetN >= 2 {
			mean := offsetSum / float64(offsetN)
			if math.Abs(mean) > 0.0005*299792458.0 {
				var maxAbs, sumAbs float64
				for _, off := range offsets {
					a := math.Abs(off)
					if a > maxAbs {
						maxAbs = a
					}
					sumAbs += a
				}
				if sumAbs == 0 || maxAbs <= 2*sumAbs/float64(offsetN) {
					for sat := 1; sat <= MaxSat; sat++ {
						j := idx.IdxBias(sat, f)
						if s.X[j] != 0.0 {
							s.X[j] += mean
						}
					}
				}
			}
		}

		for sat := 1; sat <= MaxSat; sat++ {
			j := idx.IdxBias(sat, f)
			kalman.InflateDiag(s.P, j, s.Opt.ProcessNoiseBias*s.Opt.ProcessNoiseBias*math.Abs(dt))
		}
		for _, b := range biases {
			j := idx.IdxBias(b.sat, f)
			if s.X[j] != 0.0 && !b.slip {
				continue
			}
			kalman.Reinit(s.X, s.P, j, b.bias, VarBias)
			s.Sats[b.sat].AmbPairBits = 0
		}
	}
}

// isDayBoundary reports the round(tow*10) mod 864000 == 0 condition named
// in spec §4.4 and invariant §8.6.
func isDayBoundary(t gtime.Time) bool {
	_, tow := t.GPS()
	return int64(math.Round(tow*10.0))%864000 == 0
}

// satSysOf is a placeholder satellite-id-to-system classifier matching the
// arena layout used elsewhere in this package (clockSysPrnBase); real
// system membership is owned by the ephemeris collaborator's satellite
// table in a full build.
func satSysOf(sat int) int {
	switch {
	case sat >= 160:
		return SysCMP
	default:
		return SysGPS
	}
}
