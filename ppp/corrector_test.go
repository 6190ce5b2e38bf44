package ppp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnssgo/pppcore/geodetic"
	"github.com/gnssgo/pppcore/internal/config"
)

func Test_bds2MultipathZeroForNonBDS2(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, BDS2Multipath(19, 0, 0.5)) // PRN19 is BDS3-M
	assert.Equal(0.0, BDS2Multipath(0, 0, 0.5))  // out of range
}

func Test_bds2MultipathInterpolatesWithinBin(t *testing.T) {
	assert := assert.New(t)
	v0 := BDS2Multipath(1, 0, 0)               // elev 0deg, BDS2-G, B1
	v10 := BDS2Multipath(1, 0, 10*math.Pi/180) // elev 10deg
	vmid := BDS2Multipath(1, 0, 5*math.Pi/180) // elev 5deg, midpoint
	assert.True(math.Abs(vmid-(v0+v10)/2) < 1e-9)
}

func Test_correctObservableFormsIonoFree(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.IonoOpt = config.IonoIFLC
	s := NewSession(opt, Collaborators{}, nil)

	lamL1, lamL2 := 299792458.0/1.57542e9, 299792458.0/1.22760e9
	s.Lam[1][0], s.Lam[1][1] = lamL1, lamL2

	var obs Observation
	obs.Sat = 1
	obs.Freq[0] = FreqObs{L: 20e6 / lamL1, P: 20e6}
	obs.Freq[1] = FreqObs{L: 20e6 / lamL2, P: 20e6}

	out := s.CorrectObservable(obs, SysGPS, geodetic.Vec3{}, geodetic.Vec3{}, "", 0, 0)
	assert.True(out.Lc != 0.0)
	assert.True(out.Pc != 0.0)
	// iono-free combination of two identical ranges should reproduce it.
	assert.True(math.Abs(out.Pc-20e6) < 1e-6)
}
