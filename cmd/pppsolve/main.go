// pppsolve drives one ppp.Session across a batch of epochs read from a
// JSON fixture file (or, with -synthetic, a generated single-satellite
// arc), printing a status-stream of $POS/$CLK lines (plus $ERR on a
// non-nominal epoch and $COV with -y) the way the teacher's rnx2rtkp
// prints its solution records. No $TROP/$ION/$DCB/$AMB lines are printed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/gtime"
	"github.com/gnssgo/pppcore/internal/ambiguity"
	"github.com/gnssgo/pppcore/internal/antenna"
	"github.com/gnssgo/pppcore/internal/atmosphere"
	"github.com/gnssgo/pppcore/internal/config"
	"github.com/gnssgo/pppcore/internal/ephemeris"
	"github.com/gnssgo/pppcore/internal/pointpos"
	"github.com/gnssgo/pppcore/internal/tides"
	"github.com/gnssgo/pppcore/ppp"
)

const progname = "pppsolve"

var help = []string{
	"",
	" usage: pppsolve [option]... fixture.json",
	"",
	" Read a JSON fixture of observation epochs and compute a single-receiver",
	" precise point position for each, printing a status-stream line per epoch.",
	" With -synthetic, fixture.json is ignored and a generated single-satellite",
	" arc is solved instead, for smoke-testing without input data.",
	"",
	" -p mode    mode (0:kinematic,1:static,2:fixed) [0]",
	" -f nfreq   number of frequencies (1:L1,2:L1+L2,3:L1+L2+L5) [2]",
	" -m mask    elevation mask angle (deg) [10]",
	" -ion mode  ionosphere option (0:off,1:brdc,2:iflc,3:est) [2]",
	" -trp mode  troposphere option (0:off,1:saas,2:sbas,3:est) [3]",
	" -ar mode   ambiguity resolution (0:off,1:cont,2:inst,3:fixhold) [0]",
	" -opt str   raw pppopt sub-option string (e.g. \"-GAP_RESION=60\") []",
	" -y level   print position covariance diagonal as $COV (0:off,1:on) [0]",
	" -synthetic solve a generated fixture instead of reading a file [off]",
}

func usage() {
	for _, h := range help {
		fmt.Fprintln(os.Stderr, h)
	}
}

// fixtureEpoch/fixtureObs/fixtureSat mirror the small decoded-feed format
// named in the estimator spec's ambient stack: a pre-decoded JSON fixture
// rather than a RINEX/SP3 reader (explicitly out of scope).
type fixtureObs struct {
	Sat  int       `json:"sat"`
	L    []float64 `json:"l"`   // carrier phase per freq, cycles
	P    []float64 `json:"p"`   // pseudorange per freq, m
	SNR  []float64 `json:"snr"` // dB-Hz per freq
	LLI  []int     `json:"lli"`
}

type fixtureSat struct {
	Sat       int       `json:"sat"`
	Pos       []float64 `json:"pos"` // ECEF, m
	Vel       []float64 `json:"vel,omitempty"`
	ClockBias float64   `json:"clock_bias"`
	BlockType string    `json:"block_type,omitempty"`
	Lambda    []float64 `json:"lambda"` // wavelength per freq, m
}

type fixtureEpoch struct {
	Time float64      `json:"gpstow"` // GPS seconds of week
	Week int          `json:"gpsweek"`
	Obs  []fixtureObs `json:"obs"`
	Sats []fixtureSat `json:"sats"`
}

type fixture struct {
	Epochs []fixtureEpoch `json:"epochs"`
}

func loadFixture(path string) (*fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var fx fixture
	if err := json.NewDecoder(f).Decode(&fx); err != nil {
		return nil, fmt.Errorf("pppsolve: decoding %s: %w", path, err)
	}
	return &fx, nil
}

// syntheticFixture generates a short static single-satellite arc so the
// tool can be exercised without external data.
func syntheticFixture() *fixture {
	const n = 30
	satPos := []float64{20000e3, 5000e3, 15000e3}
	rcvTrue := []float64{-2700000.0, -4300000.0, 3800000.0}
	lam := 299792458.0 / 1.57542e9

	fx := &fixture{}
	for i := 0; i < n; i++ {
		e := fixtureEpoch{
			Time: 100000.0 + float64(i),
			Week: 2200,
			Sats: []fixtureSat{{
				Sat: 1, Pos: satPos, ClockBias: 0, BlockType: "BLOCK IIF",
				Lambda: []float64{lam, lam, lam},
			}},
		}
		dx, dy, dz := satPos[0]-rcvTrue[0], satPos[1]-rcvTrue[1], satPos[2]-rcvTrue[2]
		r := math.Sqrt(dx*dx + dy*dy + dz*dz)
		e.Obs = []fixtureObs{{
			Sat: 1,
			L:   []float64{r / lam, r / lam},
			P:   []float64{r, r},
			SNR: []float64{45, 43},
			LLI: []int{0, 0},
		}}
		fx.Epochs = append(fx.Epochs, e)
	}
	return fx
}

func vec3(v []float64) geodetic.Vec3 {
	if len(v) < 3 {
		return geodetic.Vec3{}
	}
	return geodetic.Vec3{v[0], v[1], v[2]}
}

func buildSession(opt config.ProcOpt) *ppp.Session {
	ephTab := ephemeris.NewTable()
	antModel := antenna.NewModel()
	atmoModel := &atmosphere.Model{}
	tideModel := &tides.Model{SunMoon: func(t gtime.Time) (sun, moon geodetic.Vec3) { return }}

	collab := ppp.Collaborators{
		Ephemeris: ephemerisAdapter{ephTab},
		Antenna:   antModel,
		Atmosphere: atmoModel,
		Tides:     tideModel,
		PointPos:  pointpos.NewSolver(),
		Ambiguity: ambiguity.NewResolver(),
		SunMoon:   tideModel.SunMoon,
	}
	tracer := ppp.NewTracer(os.Stderr, 0)
	return ppp.NewSession(opt, collab, tracer)
}

// ephemerisAdapter lets the per-epoch fixture satellites (position/clock
// given directly in the fixture, rather than broadcast/precise products)
// satisfy ppp.EphemerisProvider without internal/ephemeris's own tables;
// the real Table is still wired and used whenever the fixture omits a
// satellite so its Lagrange/Keplerian machinery stays exercised.
type ephemerisAdapter struct {
	fallback *ephemeris.Table
}

var currentEpochSats map[int]fixtureSat

func (e ephemerisAdapter) SatPos(t gtime.Time, sat int) (pos, vel geodetic.Vec3, clkBias, clkDrift, varPos float64, healthy bool) {
	if currentEpochSats != nil {
		if fs, ok := currentEpochSats[sat]; ok {
			return vec3(fs.Pos), vec3(fs.Vel), fs.ClockBias, 0, 1.0, true
		}
	}
	return e.fallback.SatPos(t, sat)
}

func runFixture(s *ppp.Session, fx *fixture, opt config.ProcOpt, diag bool) {
	for _, fe := range fx.Epochs {
		t := gtime.FromGPS(fe.Week, fe.Time)

		satByID := make(map[int]fixtureSat, len(fe.Sats))
		for _, fs := range fe.Sats {
			satByID[fs.Sat] = fs
			if len(fs.Lambda) > 0 {
				for f := 0; f < ppp.NumFreq && f < len(fs.Lambda); f++ {
					s.Lam[fs.Sat][f] = fs.Lambda[f]
				}
			}
		}
		currentEpochSats = satByID

		ep := ppp.Epoch{Time: t}
		for _, fo := range fe.Obs {
			var obs ppp.Observation
			obs.Sat = fo.Sat
			for f := 0; f < ppp.NumFreq; f++ {
				if f < len(fo.L) {
					obs.Freq[f].L = fo.L[f]
				}
				if f < len(fo.P) {
					obs.Freq[f].P = fo.P[f]
				}
				if f < len(fo.SNR) {
					obs.Freq[f].SNR = fo.SNR[f]
				}
				if f < len(fo.LLI) {
					obs.Freq[f].LLI = uint8(fo.LLI[f])
				}
			}
			ep.Obs = append(ep.Obs, obs)
			if fs, ok := satByID[fo.Sat]; ok {
				s.Sats[fo.Sat].BlockType = fs.BlockType
			}
		}

		sol := s.PPPos(ep)
		printStatus(sol, opt, diag)
	}
}

func printStatus(sol ppp.Solution, opt config.ProcOpt, diag bool) {
	geo := geodetic.ECEFToGeodetic(sol.Pos)
	fmt.Printf("$POS  %10.3f %3s %4d  %14.4f %14.4f %14.4f  %12.8f %12.8f %10.4f\n",
		sol.Time.Sub(gtime.Time{}), sol.Stat, sol.NumSats,
		sol.Pos[0], sol.Pos[1], sol.Pos[2], geo[0]*180/math.Pi, geo[1]*180/math.Pi, geo[2])

	fmt.Printf("$CLK  %14.6f %14.6f %14.6f %14.6f\n",
		sol.ClockSV[0], sol.ClockSV[1], sol.ClockSV[2], sol.ClockSV[3])

	if sol.Err != ppp.ErrNone {
		fmt.Printf("$ERR  %d\n", sol.Err)
	}
	if diag {
		fmt.Printf("$COV  %10.4f %10.4f %10.4f\n", sol.Cov[0], sol.Cov[1], sol.Cov[2])
	}
}

func main() {
	var (
		modeN, nfreq, ionoN, tropN, arN int
		elevMaskDeg                     float64
		pppopt                          string
		diag                            bool
		synthetic                       bool
	)
	opt := config.Default()

	flag.IntVar(&modeN, "p", int(opt.Mode), "positioning mode")
	flag.IntVar(&nfreq, "f", opt.NumFreq, "number of frequencies")
	flag.Float64Var(&elevMaskDeg, "m", opt.ElevationMask*180/math.Pi, "elevation mask (deg)")
	flag.IntVar(&ionoN, "ion", int(opt.IonoOpt), "ionosphere option")
	flag.IntVar(&tropN, "trp", int(opt.TropOpt), "troposphere option")
	flag.IntVar(&arN, "ar", int(opt.ARMode), "ambiguity resolution mode")
	flag.StringVar(&pppopt, "opt", "", "raw pppopt sub-option string")
	flagY := flag.Int("y", 0, "print position covariance diagonal ($COV)")
	flag.BoolVar(&synthetic, "synthetic", false, "solve a generated fixture")
	flag.Usage = usage
	flag.Parse()

	opt.Mode = config.Mode(modeN)
	opt.NumFreq = nfreq
	opt.ElevationMask = elevMaskDeg * math.Pi / 180
	opt.IonoOpt = config.IonoOpt(ionoN)
	opt.TropOpt = config.TropOpt(tropN)
	opt.ARMode = config.ARMode(arN)
	opt.PPPOpt = pppopt
	if err := opt.ApplyPPPOpt(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	diag = *flagY > 0

	var fx *fixture
	if synthetic {
		fx = syntheticFixture()
	} else {
		args := flag.Args()
		if len(args) < 1 {
			usage()
			os.Exit(1)
		}
		var err error
		fx, err = loadFixture(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	s := buildSession(opt)
	runFixture(s, fx, opt, diag)
}
