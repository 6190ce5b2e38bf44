package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func Test_updateConvergesToMeasurement(t *testing.T) {
	assert := assert.New(t)

	x := []float64{10.0}
	p := mat.NewSymDense(1, []float64{100.0})
	h := mat.NewDense(1, 1, []float64{1.0})
	v := mat.NewVecDense(1, []float64{2.0}) // y - h*x = 12 - 10
	r := mat.NewSymDense(1, []float64{1.0})

	err := Update(x, p, h, v, r)
	assert.NoError(err)
	assert.True(math.Abs(x[0]-11.980198) < 1e-4)
	assert.True(p.At(0, 0) < 100.0)
}

func Test_updateSkipsInactiveState(t *testing.T) {
	assert := assert.New(t)
	x := []float64{0.0, 5.0}
	p := mat.NewSymDense(2, []float64{0, 0, 0, 4.0})
	h := mat.NewDense(2, 1, []float64{1.0, 1.0})
	v := mat.NewVecDense(1, []float64{1.0})
	r := mat.NewSymDense(1, []float64{1.0})

	err := Update(x, p, h, v, r)
	assert.NoError(err)
	assert.Equal(0.0, x[0]) // inactive column untouched
	assert.NotEqual(5.0, x[1])
}

func Test_reinitDeactivate(t *testing.T) {
	assert := assert.New(t)
	x := []float64{0, 0}
	p := mat.NewSymDense(2, nil)
	Reinit(x, p, 0, 3.0, 9.0)
	assert.Equal(3.0, x[0])
	assert.Equal(9.0, p.At(0, 0))
	Deactivate(x, p, 0)
	assert.Equal(0.0, x[0])
	assert.Equal(0.0, p.At(0, 0))
}

func Test_inflateDiag(t *testing.T) {
	assert := assert.New(t)
	p := mat.NewSymDense(1, []float64{1.0})
	InflateDiag(p, 0, 2.0)
	assert.Equal(3.0, p.At(0, 0))
}
