package nn

import (
	"math"
	"math/rand"
	"time"
)

// InitBound returns the half-width of the uniform distribution used for a
// layer's initial weights.
//
// Both bounds scale with 1/sqrt(fanIn) so that the variance of z = W·x stays
// close to the variance of x:
//   - ReLU: sqrt(6/fanIn) (He uniform, variance 2/fanIn)
//   - others: sqrt(3/fanIn) (LeCun uniform, variance 1/fanIn)
func InitBound(fanIn int, act Activation) float64 {
	if act == ReLU {
		return math.Sqrt(6 / float64(fanIn))
	}
	return math.Sqrt(3 / float64(fanIn))
}

// uniform fills data with values drawn from U(-bound, bound).
func uniform(data []float64, bound float64, rng *rand.Rand) {
	for i := range data {
		//nolint:gosec // Weight initialization is not security-critical
		data[i] = (rng.Float64()*2 - 1) * bound
	}
}

// NewRand returns a source for weight initialization. A zero seed draws one
// from the clock.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // Weight initialization is not security-critical
	return rand.New(rand.NewSource(seed))
}
