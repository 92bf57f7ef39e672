package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/densenet-ml/densenet/internal/tensor"
)

// DenseLayer is a fully connected layer.
//
// Performs the transformation: a = f(W·x + b)
// where:
//   - x is the input vector with length in
//   - W is the weight matrix with shape [out, in]
//   - b is the bias vector with length out
//   - f is the layer's Activation
//
// Forward caches x, z = W·x + b and a; the next Backward consumes the cache.
// A layer is not safe for concurrent use.
type DenseLayer struct {
	index      int           // position in the owning network, -1 if standalone
	weights    *mat.Dense    // [out, in], row-major
	bias       *mat.VecDense // [out]
	activation Activation
	cache      *forwardCache
}

type forwardCache struct {
	input []float64
	z     []float64
	a     []float64
}

// Gradient holds ∂loss/∂W and ∂loss/∂b for one layer. It lives for a single
// training step.
type Gradient struct {
	Weights *mat.Dense    // [out, in]
	Bias    *mat.VecDense // [out]
}

// NewDenseLayer creates a layer mapping in inputs to out outputs.
//
// Weights are drawn from U(-InitBound, InitBound) using rng (a clock-seeded
// source when nil). Biases start at zero.
func NewDenseLayer(in, out int, act Activation, rng *rand.Rand) (*DenseLayer, error) {
	if in <= 0 || out <= 0 {
		return nil, invalidConfig("dense layer widths must be positive, got %d→%d", in, out)
	}
	if !act.Valid() {
		return nil, invalidConfig("unknown activation %d", uint8(act))
	}
	if rng == nil {
		rng = NewRand(0)
	}

	w := make([]float64, out*in)
	uniform(w, InitBound(in, act), rng)

	return &DenseLayer{
		index:      -1,
		weights:    mat.NewDense(out, in, w),
		bias:       mat.NewVecDense(out, nil),
		activation: act,
	}, nil
}

// NewDenseLayerFrom creates a layer from existing parameters. weights is
// row-major [out, in]; both slices are copied.
func NewDenseLayerFrom(in, out int, act Activation, weights, bias []float64) (*DenseLayer, error) {
	if in <= 0 || out <= 0 {
		return nil, invalidConfig("dense layer widths must be positive, got %d→%d", in, out)
	}
	if !act.Valid() {
		return nil, invalidConfig("unknown activation %d", uint8(act))
	}
	if err := checkLen("weights", -1, in*out, len(weights)); err != nil {
		return nil, err
	}
	if err := checkLen("bias", -1, out, len(bias)); err != nil {
		return nil, err
	}

	return &DenseLayer{
		index:      -1,
		weights:    mat.NewDense(out, in, tensor.Clone(weights)),
		bias:       mat.NewVecDense(out, tensor.Clone(bias)),
		activation: act,
	}, nil
}

// Forward computes a = f(W·input + b) and caches what Backward needs.
//
// Returns a ShapeError if len(input) != InputWidth and a NumericError if the
// activation produced a non-finite value. A failed Forward drops the cache of
// any earlier pass.
func (l *DenseLayer) Forward(input []float64) ([]float64, error) {
	l.cache = nil
	in, out := l.InputWidth(), l.OutputWidth()
	if err := checkLen("forward", l.index, in, len(input)); err != nil {
		return nil, err
	}

	x := tensor.Clone(input)
	z := mat.NewVecDense(out, nil)
	z.MulVec(l.weights, mat.NewVecDense(in, x))
	z.AddVec(z, l.bias)
	zs := z.RawVector().Data

	a, err := Activate(l.activation, zs)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", l.index, err)
	}
	if !tensor.Finite(a) {
		return nil, &NumericError{Op: "forward " + l.activation.String(), Layer: l.index, Value: firstNonFinite(a)}
	}

	l.cache = &forwardCache{input: x, z: zs, a: a}
	return tensor.Clone(a), nil
}

// Backward propagates upstream = ∂loss/∂a through the activation and the
// linear map.
//
// Returns the parameter gradient and ∂loss/∂input for the preceding layer.
// Element-wise activations multiply by their derivative; Softmax applies its
// full Jacobian. Returns ErrBackwardWithoutForward when no forward pass is
// cached.
func (l *DenseLayer) Backward(upstream []float64) (*Gradient, []float64, error) {
	if l.cache == nil {
		return nil, nil, fmt.Errorf("layer %d: %w", l.index, ErrBackwardWithoutForward)
	}
	if err := checkLen("backward", l.index, l.OutputWidth(), len(upstream)); err != nil {
		return nil, nil, err
	}

	c := l.cache
	var delta []float64
	if l.activation.Elementwise() {
		d, err := Derivative(l.activation, c.z, c.a)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", l.index, err)
		}
		delta = make([]float64, len(d))
		floats.MulTo(delta, d, upstream)
	} else {
		j, err := Jacobian(l.activation, c.z, c.a)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", l.index, err)
		}
		dv := mat.NewVecDense(len(upstream), nil)
		dv.MulVec(j.T(), mat.NewVecDense(len(upstream), tensor.Clone(upstream)))
		delta = dv.RawVector().Data
	}

	return l.BackwardDelta(delta)
}

// BackwardDelta is Backward for a caller that already holds
// delta = ∂loss/∂z, such as the output layer under the Softmax+CrossEntropy
// pairing.
//
//	ΔW = delta ⊗ input
//	Δb = delta
//	downstream = Wᵀ·delta
//
// The forward cache is cleared.
func (l *DenseLayer) BackwardDelta(delta []float64) (*Gradient, []float64, error) {
	if l.cache == nil {
		return nil, nil, fmt.Errorf("layer %d: %w", l.index, ErrBackwardWithoutForward)
	}
	in, out := l.InputWidth(), l.OutputWidth()
	if err := checkLen("backward", l.index, out, len(delta)); err != nil {
		return nil, nil, err
	}

	d := mat.NewVecDense(out, tensor.Clone(delta))
	x := mat.NewVecDense(in, l.cache.input)

	dw := mat.NewDense(out, in, nil)
	dw.Outer(1, d, x)

	down := mat.NewVecDense(in, nil)
	down.MulVec(l.weights.T(), d)

	l.cache = nil
	return &Gradient{Weights: dw, Bias: mat.VecDenseCopyOf(d)}, down.RawVector().Data, nil
}

// InputWidth returns the number of inputs (W.cols).
func (l *DenseLayer) InputWidth() int {
	_, c := l.weights.Dims()
	return c
}

// OutputWidth returns the number of outputs (W.rows).
func (l *DenseLayer) OutputWidth() int {
	r, _ := l.weights.Dims()
	return r
}

// Activation returns the layer's activation kind.
func (l *DenseLayer) Activation() Activation {
	return l.activation
}

// Weights returns a copy of W.
func (l *DenseLayer) Weights() *mat.Dense {
	return mat.DenseCopyOf(l.weights)
}

// Bias returns a copy of b.
func (l *DenseLayer) Bias() []float64 {
	return tensor.Clone(l.bias.RawVector().Data)
}

// Parameters returns the layer's trainable buffers, weight first. The
// returned Value slices alias the layer's storage.
func (l *DenseLayer) Parameters() []Parameter {
	return []Parameter{
		{Name: fmt.Sprintf("layer.%d.weight", l.index), Value: l.weights.RawMatrix().Data},
		{Name: fmt.Sprintf("layer.%d.bias", l.index), Value: l.bias.RawVector().Data},
	}
}

// NumParameters returns out*in + out.
func (l *DenseLayer) NumParameters() int {
	return l.OutputWidth()*l.InputWidth() + l.OutputWidth()
}

// Clone returns a deep copy of the layer without its forward cache.
func (l *DenseLayer) Clone() *DenseLayer {
	return &DenseLayer{
		index:      l.index,
		weights:    mat.DenseCopyOf(l.weights),
		bias:       mat.VecDenseCopyOf(l.bias),
		activation: l.activation,
	}
}

// zeroGradient returns a zero-valued gradient shaped like the layer.
func (l *DenseLayer) zeroGradient() *Gradient {
	return &Gradient{
		Weights: mat.NewDense(l.OutputWidth(), l.InputWidth(), nil),
		Bias:    mat.NewVecDense(l.OutputWidth(), nil),
	}
}

// Add accumulates other into g.
func (g *Gradient) Add(other *Gradient) {
	g.Weights.Add(g.Weights, other.Weights)
	g.Bias.AddVec(g.Bias, other.Bias)
}

// Scale multiplies every entry of g by f.
func (g *Gradient) Scale(f float64) {
	g.Weights.Scale(f, g.Weights)
	g.Bias.ScaleVec(f, g.Bias)
}

func firstNonFinite(v []float64) float64 {
	for _, x := range v {
		if !tensor.Finite([]float64{x}) {
			return x
		}
	}
	return 0
}
