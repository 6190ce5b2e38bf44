package ppp

import "github.com/gnssgo/pppcore/internal/config"

// ParamKind tags a semantic parameter variant, replacing the source's raw
// offset macros with the typed descriptor abstraction spec §9 calls for.
type ParamKind int

const (
	KindPosition ParamKind = iota
	KindVelocity
	KindAccel
	KindClock
	KindTropWet
	KindTropGrad
	KindIono
	KindDCB
	KindBias
)

// ParamRef names one scalar parameter; which fields are meaningful depends
// on Kind.
type ParamRef struct {
	Kind ParamKind
	Axis int // Position/Velocity/Accel: 0,1,2 (E/N/U or X/Y/Z); TropGrad: 0=N,1=E
	Sys  int // Clock: ClockSysIndex bucket
	Sat  int // Iono/Bias: 1-based satellite id
	Freq int // Bias: 0-based frequency index
}

// Indexer is the C1 component: a pure function of config.ProcOpt mapping a
// semantic ParamRef to a flat state-vector offset. Its layout is computed
// once at session start and never changes afterward (spec §4.1).
type Indexer struct {
	numPos  int // 3 or 9
	numClk  int // NumClockSys, constant
	numTrop int // 0, 1 or 3
	numIono int // 0 or MaxSat
	numDCB  int // 0 or 1
	numFreqBias int // 1 (IFLC) or opt.NumFreq

	offPos  int
	offClk  int
	offTrop int
	offIono int
	offDCB  int
	offBias int

	size int
}

// NewIndexer computes the fixed layout for opt. The ordering — position,
// clocks, trop, iono, dcb, biases — is normative (spec §4.1): external
// status consumers and the time-update loop depend on contiguous blocks.
func NewIndexer(opt config.ProcOpt) Indexer {
	var idx Indexer
	if opt.Dynamics {
		idx.numPos = 9
	} else {
		idx.numPos = 3
	}
	idx.numClk = NumClockSys
	switch {
	case opt.TropOpt < config.TropEstimate:
		idx.numTrop = 0
	case opt.TropOpt == config.TropEstimate:
		idx.numTrop = 1
	default:
		idx.numTrop = 3
	}
	if opt.IonoOpt == config.IonoEstimate {
		idx.numIono = MaxSat
	}
	if opt.NumFreq >= 3 {
		idx.numDCB = 1
	}
	if opt.IonoOpt == config.IonoIFLC {
		idx.numFreqBias = 1
	} else {
		idx.numFreqBias = opt.NumFreq
	}

	idx.offPos = 0
	idx.offClk = idx.offPos + idx.numPos
	idx.offTrop = idx.offClk + idx.numClk
	idx.offIono = idx.offTrop + idx.numTrop
	idx.offDCB = idx.offIono + idx.numIono
	idx.offBias = idx.offDCB + idx.numDCB
	idx.size = idx.offBias + idx.numFreqBias*MaxSat
	return idx
}

// StateSize returns N, the total state-vector length.
func (idx Indexer) StateSize() int { return idx.size }

// NumPositionParams returns 3 (position only) or 9 (with velocity/accel).
func (idx Indexer) NumPositionParams() int { return idx.numPos }

// NumBiasFreqs returns how many frequency slots carry an ambiguity: 1 under
// iono-free combination mode, else opt.NumFreq.
func (idx Indexer) NumBiasFreqs() int { return idx.numFreqBias }

// HasDynamics reports whether velocity/acceleration states exist.
func (idx Indexer) HasDynamics() bool { return idx.numPos == 9 }

// HasIono reports whether per-satellite ionosphere states exist.
func (idx Indexer) HasIono() bool { return idx.numIono > 0 }

// HasDCB reports whether the receiver DCB state exists.
func (idx Indexer) HasDCB() bool { return idx.numDCB > 0 }

// NumTropParams returns 0, 1 (ZWD only) or 3 (ZWD + 2 gradients).
func (idx Indexer) NumTropParams() int { return idx.numTrop }

// IdxPos returns the state index of the position component on the given
// axis (0,1,2).
func (idx Indexer) IdxPos(axis int) int { return idx.offPos + axis }

// IdxVel returns the state index of the velocity component on the given
// axis; only valid when HasDynamics().
func (idx Indexer) IdxVel(axis int) int { return idx.offPos + 3 + axis }

// IdxAccel returns the state index of the acceleration component on the
// given axis; only valid when HasDynamics().
func (idx Indexer) IdxAccel(axis int) int { return idx.offPos + 6 + axis }

// IdxClock returns the state index of the receiver clock bias for the given
// ClockSysIndex bucket.
func (idx Indexer) IdxClock(sys int) int { return idx.offClk + sys }

// IdxTropWet returns the state index of the zenith wet delay parameter.
func (idx Indexer) IdxTropWet() int { return idx.offTrop }

// IdxTropGrad returns the state index of the horizontal gradient on the
// given axis (0=north,1=east); only valid when NumTropParams()==3.
func (idx Indexer) IdxTropGrad(axis int) int { return idx.offTrop + 1 + axis }

// IdxIono returns the state index of satellite sat's slant ionospheric
// delay; only valid when HasIono().
func (idx Indexer) IdxIono(sat int) int { return idx.offIono + sat - 1 }

// IdxDCB returns the state index of the receiver inter-frequency DCB;
// only valid when HasDCB().
func (idx Indexer) IdxDCB() int { return idx.offDCB }

// IdxBias returns the state index of satellite sat's carrier-phase
// ambiguity on bias-frequency slot f (0-based, bounded by NumBiasFreqs()).
func (idx Indexer) IdxBias(sat, f int) int { return idx.offBias + MaxSat*f + sat - 1 }

// Resolve dereferences a ParamRef into a flat index, the uniform entry
// point the rest of the estimator uses instead of calling the per-kind
// accessors directly.
func (idx Indexer) Resolve(ref ParamRef) int {
	switch ref.Kind {
	case KindPosition:
		return idx.IdxPos(ref.Axis)
	case KindVelocity:
		return idx.IdxVel(ref.Axis)
	case KindAccel:
		return idx.IdxAccel(ref.Axis)
	case KindClock:
		return idx.IdxClock(ref.Sys)
	case KindTropWet:
		return idx.IdxTropWet()
	case KindTropGrad:
		return idx.IdxTropGrad(ref.Axis)
	case KindIono:
		return idx.IdxIono(ref.Sat)
	case KindDCB:
		return idx.IdxDCB()
	case KindBias:
		return idx.IdxBias(ref.Sat, ref.Freq)
	default:
		return -1
	}
}
