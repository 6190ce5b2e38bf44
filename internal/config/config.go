// Package config holds the estimator's processing options: positioning
// mode, frequency count, iono/trop model selection, process-noise and
// error-factor tuples, masks, and the pppopt substring parser
// ("-GAP_RESION=NNN" and friends), the "configuration parsing" external
// collaborator named by the estimator spec.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode enumerates the positioning modes named in spec §4.4.
type Mode int

const (
	ModeKinematic Mode = iota
	ModeStatic
	ModeFixed
)

// IonoOpt enumerates the ionosphere-correction sources named in spec §6.
type IonoOpt int

const (
	IonoOff IonoOpt = iota
	IonoBroadcast
	IonoIFLC
	IonoEstimate
	IonoTEC
	IonoSTEC
	IonoSBAS
)

// TropOpt enumerates the troposphere-correction sources named in spec §6.
type TropOpt int

const (
	TropOff TropOpt = iota
	TropSaastamoinen
	TropSBAS
	TropEstimate
	TropEstimateGrad
	TropZTD
)

// ARMode enumerates the ambiguity-resolution strategy (spec §4.4: "instant-AR
// mode" is one of the ambiguity-reset triggers).
type ARMode int

const (
	ARModeOff ARMode = iota
	ARModeContinuous
	ARModeInstantaneous
	ARModeFixAndHold
)

// Frequency pairing used for the iono-free combination, spec §9 Open
// Question 1: made configurable rather than hardcoded by system.
type FreqPair struct {
	GPSQZSGLO int // second frequency index for GPS/QZSS/GLONASS (default 2: L1/L2)
	GALSBSBDS int // second frequency index for Galileo/SBAS/BeiDou (default 3: L1/L5 or B1/B2a)
}

// DefaultFreqPair matches the source's hardcoded choice (k=2 for
// GPS/QZS/GLO, k=3 for GAL/SBS/CMP).
var DefaultFreqPair = FreqPair{GPSQZSGLO: 2, GALSBSBDS: 3}

// ProcOpt is the estimator's processing-option bundle, grounded on the
// teacher's PrcOpt struct, trimmed to the fields the estimator core
// actually consumes.
type ProcOpt struct {
	Mode     Mode
	NumFreq  int // 1..3
	Dynamics bool

	IonoOpt IonoOpt
	TropOpt TropOpt
	ARMode  ARMode

	ElevationMask float64 // rad
	SNRMask       float64 // dB-Hz, 0 disables

	MaxOutage   int     // epochs of outage before ambiguity reset
	MaxInno     float64 // m, 0 disables prefit rejection
	GapResionEp int     // epochs of outage before iono reset (pppopt override)

	ErrA, ErrB, ErrC float64 // phase error factors a/b/c (m)
	SNRMax           float64 // dB-Hz reference for SNR-weighted variance
	WeightBySNR      bool    // spec §4.5: elevation- vs SNR-weighted variance

	ProcessNoiseBias  float64 // prn[0]
	ProcessNoiseIono  float64 // prn[1]
	ProcessNoiseTrop  float64 // prn[2]
	ProcessNoiseAccH  float64 // prn[3]
	ProcessNoiseAccV  float64 // prn[4]
	ProcessNoisePos   float64 // prn[5], static-mode position inflation

	FixedPos [3]float64 // ECEF, used when Mode==ModeFixed

	FreqPair FreqPair

	ThresSlip   float64 // geometry-free slip threshold (m)
	MWGapMax    float64 // MW single-sample abort threshold (m)
	MWCSMin     float64 // MW arc-length-scaled slip floor (m)
	MWArcMax    int     // MW running-stats arc-length saturation

	PPPOpt string // raw substring options, e.g. "-GAP_RESION=60"
}

// Default returns the teacher's stock single-receiver PPP defaults.
func Default() ProcOpt {
	return ProcOpt{
		Mode:          ModeKinematic,
		NumFreq:       2,
		Dynamics:      false,
		IonoOpt:       IonoIFLC,
		TropOpt:       TropEstimate,
		ARMode:        ARModeOff,
		ElevationMask: 10 * 3.14159265358979323846 / 180,
		MaxOutage:     120,
		MaxInno:       30.0,
		GapResionEp:   120,
		ErrA:          0.003,
		ErrB:          0.003,
		ErrC:          0.0,
		SNRMax:        45.0,
		ProcessNoiseBias: 1e-4,
		ProcessNoiseIono: 1e-3,
		ProcessNoiseTrop: 1e-4,
		ProcessNoiseAccH: 1e-1,
		ProcessNoiseAccV: 1e-2,
		ProcessNoisePos:  1e-4,
		FreqPair:         DefaultFreqPair,
		ThresSlip:        0.05,
		MWGapMax:         10.0,
		MWCSMin:          0.8,
		MWArcMax:         100,
	}
}

// ApplyPPPOpt scans the "-KEY=value" substrings in opt.PPPOpt, the same
// ad-hoc option-string idiom the source scans for "-GAP_RESION=NNN". Unknown
// keys are ignored (the source silently no-ops too).
func (o *ProcOpt) ApplyPPPOpt() error {
	for _, tok := range strings.Fields(o.PPPOpt) {
		if !strings.HasPrefix(tok, "-") {
			continue
		}
		kv := strings.SplitN(strings.TrimPrefix(tok, "-"), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := kv[0], kv[1]
		switch key {
		case "GAP_RESION":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("config: bad GAP_RESION value %q: %w", val, err)
			}
			o.GapResionEp = n
		case "MAX_ITER":
			// reserved for future iteration-cap overrides; no-op today,
			// matching the source's tolerance of unrecognized sub-options.
		}
	}
	return nil
}

// SecondFreqIndex returns the zero-based second-frequency index used in the
// iono-free combination for a given system, honoring FreqPair.
func (o ProcOpt) SecondFreqIndex(isGalSbsBds bool) int {
	if isGalSbsBds {
		return o.FreqPair.GALSBSBDS - 1
	}
	return o.FreqPair.GPSQZSGLO - 1
}
