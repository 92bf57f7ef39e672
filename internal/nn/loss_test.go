package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMeanSquaredError(t *testing.T) {
	p := []float64{0.5, 1.0, -1.0}
	y := []float64{1.0, 1.0, 1.0}

	loss, err := ComputeLoss(MeanSquaredError, p, y)
	require.NoError(t, err)
	// (0.25 + 0 + 4) / 3
	assert.InDelta(t, 4.25/3, loss, 1e-15)

	g, err := LossGradient(MeanSquaredError, p, y)
	require.NoError(t, err)
	// 2/3 * (p - y)
	assert.InDeltaSlice(t, []float64{-1.0 / 3, 0, -4.0 / 3}, g, 1e-15)
}

func TestCrossEntropy(t *testing.T) {
	p := []float64{0.7, 0.2, 0.1}
	y := []float64{1, 0, 0}

	loss, err := ComputeLoss(CrossEntropy, p, y)
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.7), loss, 1e-9)

	g, err := LossGradient(CrossEntropy, p, y)
	require.NoError(t, err)
	assert.InDelta(t, -1/0.7, g[0], 1e-9)
	assert.Equal(t, 0.0, g[1])
	assert.Equal(t, 0.0, g[2])
}

func TestCrossEntropyZeroProbability(t *testing.T) {
	loss, err := ComputeLoss(CrossEntropy, []float64{0, 1}, []float64{1, 0})
	require.NoError(t, err)
	assert.False(t, math.IsInf(loss, 0), "epsilon must guard log(0)")
	assert.InDelta(t, -math.Log(CrossEntropyEpsilon), loss, 1e-6)

	g, err := LossGradient(CrossEntropy, []float64{0, 1}, []float64{1, 0})
	require.NoError(t, err)
	assert.False(t, math.IsInf(g[0], 0))
}

func TestLossShapeMismatch(t *testing.T) {
	for _, kind := range []Loss{MeanSquaredError, CrossEntropy} {
		_, err := ComputeLoss(kind, []float64{1, 2}, []float64{1})
		assert.ErrorIs(t, err, ErrShapeMismatch)

		_, err = LossGradient(kind, []float64{1}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrShapeMismatch)

		var shapeErr *ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, 1, shapeErr.Expected)
		assert.Equal(t, 2, shapeErr.Got)
	}
}

// TestSoftmaxCrossEntropyDelta checks that the shortcut equals the chained
// Jacobianᵀ·∂L/∂p for a one-hot target.
func TestSoftmaxCrossEntropyDelta(t *testing.T) {
	z := []float64{0.2, -0.4, 1.1}
	y := []float64{0, 1, 0}
	p, err := Activate(Softmax, z)
	require.NoError(t, err)

	delta, err := SoftmaxCrossEntropyDelta(p, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{p[0], p[1] - 1, p[2]}, delta, 1e-15)

	g, err := LossGradient(CrossEntropy, p, y)
	require.NoError(t, err)
	j, err := Jacobian(Softmax, z, p)
	require.NoError(t, err)

	chained := mat.NewVecDense(len(z), nil)
	chained.MulVec(j.T(), mat.NewVecDense(len(g), g))
	assert.InDeltaSlice(t, delta, chained.RawVector().Data, 1e-9)

	_, err = SoftmaxCrossEntropyDelta([]float64{1}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFusedSoftmaxCrossEntropy(t *testing.T) {
	assert.True(t, FusedSoftmaxCrossEntropy(Softmax, CrossEntropy))
	assert.False(t, FusedSoftmaxCrossEntropy(Softmax, MeanSquaredError))
	assert.False(t, FusedSoftmaxCrossEntropy(Sigmoid, CrossEntropy))
}

func TestParseLoss(t *testing.T) {
	for in, want := range map[string]Loss{
		"mse":                MeanSquaredError,
		"mean_squared_error": MeanSquaredError,
		"cross_entropy":      CrossEntropy,
		"CrossEntropy":       CrossEntropy,
	} {
		got, err := ParseLoss(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLoss("hinge")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, "cross_entropy", CrossEntropy.String())
}
