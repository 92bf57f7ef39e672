package nn

import (
	"fmt"
	"math"
	"strings"
)

// Loss identifies the scalar error measure a network is trained against.
type Loss uint8

// Supported losses.
const (
	MeanSquaredError Loss = iota
	CrossEntropy
)

// CrossEntropyEpsilon guards log(0) and division by zero in CrossEntropy.
const CrossEntropyEpsilon = 1e-12

var lossNames = [...]string{
	MeanSquaredError: "mse",
	CrossEntropy:     "cross_entropy",
}

// String returns the tag used in configs and model headers.
func (l Loss) String() string {
	if int(l) < len(lossNames) {
		return lossNames[l]
	}
	return fmt.Sprintf("loss(%d)", uint8(l))
}

// Valid reports whether l is one of the supported losses.
func (l Loss) Valid() bool {
	return int(l) < len(lossNames)
}

// ParseLoss maps a tag to a Loss. Besides the canonical tags it accepts
// "mean_squared_error" and "crossentropy".
func ParseLoss(s string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mse", "mean_squared_error":
		return MeanSquaredError, nil
	case "cross_entropy", "crossentropy":
		return CrossEntropy, nil
	}
	return 0, invalidConfig("unknown loss %q", s)
}

// ComputeLoss returns the scalar loss of prediction against target.
//
//	MeanSquaredError: mean((p_i - t_i)²)
//	CrossEntropy:     -Σ t_i·log(p_i + ε)
//
// CrossEntropy expects prediction to be a probability distribution.
func ComputeLoss(kind Loss, prediction, target []float64) (float64, error) {
	if err := checkLen("loss "+kind.String(), -1, len(prediction), len(target)); err != nil {
		return 0, err
	}
	if len(prediction) == 0 {
		return 0, fmt.Errorf("%w: loss %s: empty input", ErrShapeMismatch, kind)
	}

	var sum float64
	switch kind {
	case MeanSquaredError:
		for i, p := range prediction {
			d := p - target[i]
			sum += d * d
		}
		return sum / float64(len(prediction)), nil
	case CrossEntropy:
		for i, p := range prediction {
			if target[i] != 0 {
				sum -= target[i] * math.Log(p+CrossEntropyEpsilon)
			}
		}
		return sum, nil
	default:
		return 0, invalidConfig("unknown loss %d", uint8(kind))
	}
}

// LossGradient returns ∂loss/∂prediction.
//
//	MeanSquaredError: 2/n·(p - t)
//	CrossEntropy:     -t_i/(p_i + ε)
//
// The general CrossEntropy gradient is only used when the output activation
// is not Softmax; see SoftmaxCrossEntropyDelta.
func LossGradient(kind Loss, prediction, target []float64) ([]float64, error) {
	if err := checkLen("loss gradient "+kind.String(), -1, len(prediction), len(target)); err != nil {
		return nil, err
	}
	if len(prediction) == 0 {
		return nil, fmt.Errorf("%w: loss gradient %s: empty input", ErrShapeMismatch, kind)
	}

	g := make([]float64, len(prediction))
	switch kind {
	case MeanSquaredError:
		scale := 2 / float64(len(prediction))
		for i, p := range prediction {
			g[i] = scale * (p - target[i])
		}
	case CrossEntropy:
		for i, p := range prediction {
			g[i] = -target[i] / (p + CrossEntropyEpsilon)
		}
	default:
		return nil, invalidConfig("unknown loss %d", uint8(kind))
	}
	return g, nil
}

// SoftmaxCrossEntropyDelta returns ∂loss/∂z for a Softmax output layer
// trained with CrossEntropy: p - t.
//
// This is the one place where the activation and loss libraries are coupled.
// The chained form Jacobianᵀ·(-t/p) is algebraically equal when t sums to 1
// but loses precision as p_i approaches 0, so the output layer's backward
// pass must detect the pairing (FusedSoftmaxCrossEntropy) and use this
// closed form instead.
func SoftmaxCrossEntropyDelta(prediction, target []float64) ([]float64, error) {
	if err := checkLen("softmax cross entropy", -1, len(prediction), len(target)); err != nil {
		return nil, err
	}
	d := make([]float64, len(prediction))
	for i, p := range prediction {
		d[i] = p - target[i]
	}
	return d, nil
}

// FusedSoftmaxCrossEntropy reports whether an output layer with activation
// act trained with loss must take the SoftmaxCrossEntropyDelta shortcut.
func FusedSoftmaxCrossEntropy(act Activation, loss Loss) bool {
	return act == Softmax && loss == CrossEntropy
}
