package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClone(t *testing.T) {
	src := []float64{1, 2, 3}
	dst := Clone(src)
	dst[0] = 42

	assert.Equal(t, []float64{1, 2, 3}, src, "clone must not alias the source")
	assert.Equal(t, []float64{42, 2, 3}, dst)
}

func TestFinite(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want bool
	}{
		{"empty", nil, true},
		{"finite", []float64{0, -1, 1e300}, true},
		{"nan", []float64{0, math.NaN()}, false},
		{"positive inf", []float64{math.Inf(1)}, false},
		{"negative inf", []float64{1, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Finite(tt.in))
		})
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}), "ties resolve to the lowest index")
}

func TestOneHot(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 1, 0}, OneHot(2, 4))
	assert.Equal(t, []float64{0, 0}, OneHot(5, 2))
	assert.Equal(t, []float64{0, 0}, OneHot(-1, 2))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]float64{1, 2}, []float64{1, 2}))
	assert.False(t, Equal([]float64{1, 2}, []float64{1}))
	assert.False(t, Equal([]float64{0}, []float64{math.Copysign(0, -1)}), "signed zeros differ bitwise")
}
