package geodetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ecef2geodeticRoundTrip(t *testing.T) {
	assert := assert.New(t)
	want := Vec3{-2694685.473, -4293142.092, 3857878.477}
	geo := ECEFToGeodetic(want)
	got := GeodeticToECEF(geo)
	for i := 0; i < 3; i++ {
		assert.True(math.Abs(got[i]-want[i]) < 1e-6)
	}
}

func Test_azElZenith(t *testing.T) {
	assert := assert.New(t)
	pos := Vec3{0, 0, 0} // geodetic lat/lon/h all zero
	e := Vec3{1, 0, 0}   // ECEF "up" direction at the equator/prime meridian
	_, el := AzEl(pos, e)
	assert.True(math.Abs(el-math.Pi/2) < 1e-9)
}

func Test_geometricRangeSagnac(t *testing.T) {
	assert := assert.New(t)
	rs := Vec3{20000e3, 0, 0}
	rr := Vec3{6378e3, 0, 0}
	r, e := GeometricRange(rs, rr)
	assert.True(r > 0)
	n := e.Norm()
	assert.True(math.Abs(n-1) < 1e-9)
}
