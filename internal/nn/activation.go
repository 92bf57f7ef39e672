package nn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation identifies the nonlinearity applied to a layer's linear output.
//
// The set is closed: every function in this file switches over the four
// kinds, each with its own closed-form derivative.
type Activation uint8

// Supported activations. The numeric values are not part of the model file
// format; models store the String form.
const (
	Identity Activation = iota
	ReLU
	Sigmoid
	Softmax
)

var activationNames = [...]string{
	Identity: "identity",
	ReLU:     "relu",
	Sigmoid:  "sigmoid",
	Softmax:  "softmax",
}

// String returns the lower-case tag used in configs and model headers.
func (a Activation) String() string {
	if int(a) < len(activationNames) {
		return activationNames[a]
	}
	return fmt.Sprintf("activation(%d)", uint8(a))
}

// Valid reports whether a is one of the supported activations.
func (a Activation) Valid() bool {
	return int(a) < len(activationNames)
}

// Elementwise reports whether the derivative of a is diagonal, i.e. each
// output depends only on the matching input. Softmax is the only kind that
// couples its outputs.
func (a Activation) Elementwise() bool {
	return a != Softmax
}

// ParseActivation maps a tag (case-insensitive; "linear" is accepted as an
// alias of identity) to an Activation.
func ParseActivation(s string) (Activation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "linear" {
		return Identity, nil
	}
	for i, n := range activationNames {
		if n == name {
			return Activation(i), nil
		}
	}
	return 0, invalidConfig("unknown activation %q", s)
}

// Activate applies kind to the pre-activation vector z and returns a new
// vector of the same length.
func Activate(kind Activation, z []float64) ([]float64, error) {
	if len(z) == 0 {
		return nil, fmt.Errorf("%w: activate %s: empty input", ErrShapeMismatch, kind)
	}

	a := make([]float64, len(z))
	switch kind {
	case Identity:
		copy(a, z)
	case ReLU:
		for i, v := range z {
			if v > 0 {
				a[i] = v
			}
		}
	case Sigmoid:
		for i, v := range z {
			a[i] = sigmoid(v)
		}
	case Softmax:
		// Subtract the max so the largest exponent is e^0.
		m := floats.Max(z)
		for i, v := range z {
			a[i] = math.Exp(v - m)
		}
		floats.Scale(1/floats.Sum(a), a)
	default:
		return nil, invalidConfig("unknown activation %d", uint8(kind))
	}
	return a, nil
}

// sigmoid evaluates 1/(1+e^-x) without overflowing e^-x for large negative x.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Derivative returns the diagonal of ∂a/∂z for an element-wise activation,
// given the pre-activation z and the activation a = Activate(kind, z).
//
// ReLU uses a sub-gradient of 0 at z = 0. Softmax has no diagonal form; use
// Jacobian instead (or SoftmaxCrossEntropyDelta when paired with
// CrossEntropy).
func Derivative(kind Activation, z, a []float64) ([]float64, error) {
	if len(z) == 0 {
		return nil, fmt.Errorf("%w: derivative %s: empty input", ErrShapeMismatch, kind)
	}
	if err := checkLen("derivative "+kind.String(), -1, len(z), len(a)); err != nil {
		return nil, err
	}

	d := make([]float64, len(z))
	switch kind {
	case Identity:
		for i := range d {
			d[i] = 1
		}
	case ReLU:
		for i, v := range z {
			if v > 0 {
				d[i] = 1
			}
		}
	case Sigmoid:
		for i, v := range a {
			d[i] = v * (1 - v)
		}
	case Softmax:
		return nil, fmt.Errorf("%w: softmax derivative is a full Jacobian", ErrInvalidConfiguration)
	default:
		return nil, invalidConfig("unknown activation %d", uint8(kind))
	}
	return d, nil
}

// Jacobian returns the full n×n matrix ∂a/∂z. For element-wise activations
// it is diagonal; for Softmax it is diag(a) - a·aᵀ.
func Jacobian(kind Activation, z, a []float64) (*mat.Dense, error) {
	n := len(z)
	if n == 0 {
		return nil, fmt.Errorf("%w: jacobian %s: empty input", ErrShapeMismatch, kind)
	}
	if err := checkLen("jacobian "+kind.String(), -1, n, len(a)); err != nil {
		return nil, err
	}

	if kind.Elementwise() {
		d, err := Derivative(kind, z, a)
		if err != nil {
			return nil, err
		}
		return mat.NewDense(n, n, diagonal(d)), nil
	}

	av := mat.NewVecDense(n, a)
	j := mat.NewDense(n, n, nil)
	j.Outer(-1, av, av)
	for i := 0; i < n; i++ {
		j.Set(i, i, j.At(i, i)+a[i])
	}
	return j, nil
}

func diagonal(d []float64) []float64 {
	n := len(d)
	out := make([]float64, n*n)
	for i, v := range d {
		out[i*n+i] = v
	}
	return out
}
