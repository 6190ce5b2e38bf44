package ppp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnssgo/pppcore/internal/config"
)

func Test_indexerLayoutKinematicIFLC(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.Dynamics = false
	opt.TropOpt = config.TropEstimateGrad
	opt.IonoOpt = config.IonoIFLC

	idx := NewIndexer(opt)
	assert.Equal(3, idx.NumPositionParams())
	assert.Equal(3, idx.NumTropParams())
	assert.False(idx.HasIono())
	assert.Equal(1, idx.NumBiasFreqs())

	assert.Equal(0, idx.IdxPos(0))
	assert.Equal(3, idx.IdxClock(0))
	assert.Equal(7, idx.IdxTropWet())
	assert.Equal(8, idx.IdxTropGrad(0))
	assert.Equal(9, idx.IdxTropGrad(1))
	assert.False(idx.HasDCB()) // NumFreq=2 carries no receiver DCB state
	assert.Equal(10, idx.IdxBias(1, 0))
}

func Test_indexerBiasBlockContiguous(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	opt.IonoOpt = config.IonoEstimate
	opt.NumFreq = 3

	idx := NewIndexer(opt)
	assert.True(idx.HasIono())
	assert.True(idx.HasDCB())
	assert.Equal(opt.NumFreq, idx.NumBiasFreqs())

	// bias block is MaxSat-wide per frequency, contiguous and non-overlapping.
	i0 := idx.IdxBias(1, 0)
	i1 := idx.IdxBias(MaxSat, 0)
	i2 := idx.IdxBias(1, 1)
	assert.Equal(i1-i0, MaxSat-1)
	assert.Equal(i2-i1, 1)
	assert.Equal(idx.StateSize(), i2+MaxSat*(opt.NumFreq-1)+0)
}

func Test_resolveMatchesAccessors(t *testing.T) {
	assert := assert.New(t)
	opt := config.Default()
	idx := NewIndexer(opt)

	assert.Equal(idx.IdxPos(1), idx.Resolve(ParamRef{Kind: KindPosition, Axis: 1}))
	assert.Equal(idx.IdxClock(2), idx.Resolve(ParamRef{Kind: KindClock, Sys: 2}))
	assert.Equal(idx.IdxBias(5, 0), idx.Resolve(ParamRef{Kind: KindBias, Sat: 5, Freq: 0}))
}
