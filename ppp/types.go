// Package ppp implements the precise-point-positioning extended Kalman
// filter estimator core: state indexing, observable correction, cycle-slip
// detection, time update, measurement model, iterative measurement update,
// solution commit, and satellite attitude/eclipse handling.
package ppp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
	"github.com/gnssgo/pppcore/internal/config"
)

// System bit flags, one bit per constellation, matching the source's
// bitmask convention so a satellite's system membership can be tested with
// a single AND.
const (
	SysNone = 0x00
	SysGPS  = 0x01
	SysSBS  = 0x02
	SysGLO  = 0x04
	SysGAL  = 0x08
	SysQZS  = 0x10
	SysCMP  = 0x20 // BeiDou
)

// MaxSat is the arena size for per-satellite fixed arrays (spec §9: "one
// record per possible satellite id, indexed by sat-1; no hashing, no
// dynamic allocation on the hot path"). It covers GPS+SBAS+GLONASS+
// Galileo+QZSS+BeiDou PRN ranges.
const MaxSat = 223

// NumFreq is the maximum number of tracked carrier frequencies per satellite.
const NumFreq = 3

// NumClockSys is the number of distinct receiver-clock buckets: GPS/QZS/SBAS
// share one clock, GLONASS, Galileo and BeiDou each get their own (mirrors
// the source's clock-index switch in its measurement model).
const NumClockSys = 4

const (
	ClockGPS = 0 // also used by QZSS and SBAS
	ClockGLO = 1
	ClockGAL = 2
	ClockCMP = 3
)

// ClockSysIndex maps a system bit flag to its receiver-clock bucket.
func ClockSysIndex(sys int) int {
	switch sys {
	case SysGLO:
		return ClockGLO
	case SysGAL:
		return ClockGAL
	case SysCMP:
		return ClockCMP
	default:
		return ClockGPS
	}
}

// FreqObs is one frequency's raw observation on a satellite.
type FreqObs struct {
	L    float64 // carrier phase (cycles), 0 if not tracked
	P    float64 // pseudorange (m), 0 if not tracked
	D    float64 // doppler (Hz)
	SNR  float64 // carrier-to-noise density (dB-Hz)
	LLI  uint8   // loss-of-lock indicator bits
	Code uint8   // tracked code/channel type, used for DCB lookup
}

// Observation is one satellite's per-frequency observation set at an epoch.
type Observation struct {
	Sat  int // 1..MaxSat
	Freq [NumFreq]FreqObs
}

// Epoch is one batch of simultaneous observations.
type Epoch struct {
	Time gtime.Time
	Obs  []Observation
}

// SlipBits carries a cycle-slip decision plus its detector provenance for
// one (satellite, frequency) pair, spec §3's "provenance sub-bits".
type SlipBits struct {
	Slip bool
	LLI  bool
	GF   bool
	MW   bool
}

// SatState is the per-satellite record the spec requires in §3, addressed
// by 1-based satellite id in a fixed arena (no map, no per-epoch allocation).
type SatState struct {
	Valid    bool
	Az, El   float64
	VSat     [NumFreq]bool // frequency accepted this epoch

	GF         float64 // previous geometry-free combination value
	MWMean     float64
	MWMean2    float64 // second central moment
	MWPrev     float64 // previous epoch's raw MW sample, for the single-sample abort check
	MWArc      int

	Slip [NumFreq]SlipBits

	PhaseWindup float64 // cycles, monotone via half-cycle unwrap

	Outage [NumFreq]int
	Lock   [NumFreq]int
	RejCode, RejPhase int
	SlipCount [NumFreq]int // cumulative count of epochs where slip fired
	Fix       [NumFreq]int // 0=none,1=float,2=fixed-this-epoch (hold-mode bookkeeping)

	ResPrefit  [NumFreq]float64
	ResPostfit [NumFreq]float64

	SNR [NumFreq]float64

	Dion, VarIono float64

	AmbPairBits uint64 // upper-triangular ambiguity-pairing bitset (hold mode)

	BlockType string // e.g. "BLOCK IIA", "BDS2-I" — used by attitude/eclipse and BDS-2 multipath
	Eclipsed  bool
}

// SolutionStatus mirrors spec §6's solution-status enum.
type SolutionStatus int

const (
	SolNone SolutionStatus = iota
	SolSingle
	SolFloat
	SolFix
)

func (s SolutionStatus) String() string {
	switch s {
	case SolSingle:
		return "SINGLE"
	case SolFloat:
		return "FLOAT"
	case SolFix:
		return "FIX"
	default:
		return "NONE"
	}
}

// ErrorKind is attached to a Solution to explain a non-nominal status
// without making epoch processing return a Go error (spec §7: these are
// all recoverable at epoch granularity, never fatal).
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrMissingData
	ErrSatExcluded
	ErrOutlier
	ErrIllConditioned
	ErrTooFewSats
	ErrIterOverflow
)

// Solution is the per-epoch output record, spec §6.
type Solution struct {
	Time    gtime.Time
	Stat    SolutionStatus
	Err     ErrorKind
	Pos     geodetic.Vec3 // ECEF, m
	Cov     [6]float64    // xx,yy,zz,xy,yz,zx
	ClockSV [NumClockSys]float64
	NumSats int
}

// DeltaRange is a dense design row coefficient set for one scalar
// measurement. The measurement model itself builds sparse measRow values;
// nothing in this package constructs a DeltaRange.
type DeltaRange struct {
	Residual float64
	Variance float64
	Row      []float64 // length = state size, sparse but stored dense for gonum
	Sat      int
	Freq     int
	IsPhase  bool
}

// Session owns one receiver's filter state across epochs — the single,
// non-reentrant entry point named in spec §5.
type Session struct {
	Opt config.ProcOpt
	Idx Indexer

	X []float64
	P *mat.SymDense

	Sats [MaxSat + 1]SatState // 1-based; index 0 unused

	Sol      Solution
	PrevTime gtime.Time
	HaveTime bool

	Lam [MaxSat + 1][NumFreq]float64 // wavelength table (m), external nav input

	Tracer *Tracer

	Collab Collaborators

	hold holdState
}

// NewSession builds a Session with a freshly laid-out, zeroed state vector.
func NewSession(opt config.ProcOpt, collab Collaborators, tracer *Tracer) *Session {
	idx := NewIndexer(opt)
	n := idx.StateSize()
	s := &Session{
		Opt:    opt,
		Idx:    idx,
		X:      make([]float64, n),
		P:      mat.NewSymDense(n, nil),
		Collab: collab,
		Tracer: tracer,
	}
	return s
}
