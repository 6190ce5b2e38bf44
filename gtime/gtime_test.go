package gtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_epochRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ep := Epoch{2023, 6, 15, 12, 30, 45.5}
	tt := FromEpoch(ep)
	got := tt.Epoch()
	for i := 0; i < 6; i++ {
		assert.True(math.Abs(got[i]-ep[i]) < 1e-6, "field %d: got %v want %v", i, got[i], ep[i])
	}
}

func Test_gpsWeekSowRoundTrip(t *testing.T) {
	assert := assert.New(t)
	tt := FromGPS(2200, 345600.25)
	week, sow := tt.GPS()
	assert.Equal(2200, week)
	assert.True(math.Abs(sow-345600.25) < 1e-6)
}

func Test_addSub(t *testing.T) {
	assert := assert.New(t)
	t0 := FromGPS(2200, 0)
	t1 := t0.Add(3661.25)
	assert.True(math.Abs(t1.Sub(t0)-3661.25) < 1e-9)
}
