package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_defaultOpt(t *testing.T) {
	assert := assert.New(t)
	o := Default()
	assert.Equal(2, o.NumFreq)
	assert.Equal(IonoIFLC, o.IonoOpt)
	assert.Equal(TropEstimate, o.TropOpt)
}

func Test_applyPPPOptOverridesGapResion(t *testing.T) {
	assert := assert.New(t)
	o := Default()
	o.PPPOpt = "-GAP_RESION=60 -UNKNOWN_KEY=1"
	err := o.ApplyPPPOpt()
	assert.NoError(err)
	assert.Equal(60, o.GapResionEp)
}

func Test_applyPPPOptRejectsBadValue(t *testing.T) {
	assert := assert.New(t)
	o := Default()
	o.PPPOpt = "-GAP_RESION=notanumber"
	err := o.ApplyPPPOpt()
	assert.Error(err)
}

func Test_secondFreqIndexHonorsFreqPair(t *testing.T) {
	assert := assert.New(t)
	o := Default()
	assert.Equal(1, o.SecondFreqIndex(false)) // GPS/QZS/GLO default L1/L2 -> index 1
	assert.Equal(2, o.SecondFreqIndex(true))  // GAL/SBS/BDS default -> index 2

	o.FreqPair = FreqPair{GPSQZSGLO: 3, GALSBSBDS: 1}
	assert.Equal(2, o.SecondFreqIndex(false))
	assert.Equal(0, o.SecondFreqIndex(true))
}
