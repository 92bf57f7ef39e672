// Package inference serves predictions from a trained model.
//
// A Predictor is loaded once and then answers Predict calls from any number
// of goroutines. Each call borrows a private copy of the network, so calls
// never observe each other's forward caches.
package inference

import (
	"errors"
	"fmt"
	"sync"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/serialization"
	"github.com/densenet-ml/densenet/internal/tensor"
)

// ErrInputOutOfRange is returned when WithInputRange is set and an input
// value falls outside it.
var ErrInputOutOfRange = errors.New("input value out of range")

// Predictor is a read-only, goroutine-safe view of a trained network.
type Predictor struct {
	proto  *nn.Network
	header serialization.Header
	pool   sync.Pool

	checkRange bool
	lo, hi     float64
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithInputRange rejects inputs with any value outside [lo, hi]. Use
// WithInputRange(0, 1) for normalized image pixels.
func WithInputRange(lo, hi float64) Option {
	return func(p *Predictor) {
		p.checkRange = true
		p.lo, p.hi = lo, hi
	}
}

// New wraps a copy of net. Later changes to net are not seen.
func New(net *nn.Network, opts ...Option) (*Predictor, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", nn.ErrInvalidConfiguration)
	}
	return newPredictor(net.Clone(), serialization.Header{}, opts), nil
}

// FromModel serves a decoded model file. The Predictor takes ownership of
// m.Network.
func FromModel(m *serialization.Model, opts ...Option) (*Predictor, error) {
	if m == nil || m.Network == nil {
		return nil, fmt.Errorf("%w: nil model", nn.ErrInvalidConfiguration)
	}
	return newPredictor(m.Network, m.Header, opts), nil
}

// FromBytes decodes a .dnet model.
func FromBytes(data []byte, opts ...Option) (*Predictor, error) {
	m, err := serialization.Decode(data)
	if err != nil {
		return nil, err
	}
	return FromModel(m, opts...)
}

// FromFile loads a .dnet model from disk.
func FromFile(path string, opts ...Option) (*Predictor, error) {
	m, err := serialization.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return FromModel(m, opts...)
}

func newPredictor(net *nn.Network, h serialization.Header, opts []Option) *Predictor {
	p := &Predictor{proto: net, header: h}
	p.pool.New = func() any { return p.proto.Clone() }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict returns the network output for input, typically a probability
// distribution over classes.
//
// input must have InputWidth values; otherwise the error matches
// nn.ErrShapeMismatch and no prediction is made.
func (p *Predictor) Predict(input []float64) ([]float64, error) {
	if len(input) != p.InputWidth() {
		return nil, &nn.ShapeError{Op: "predict", Layer: -1, Expected: p.InputWidth(), Got: len(input)}
	}
	if p.checkRange {
		for i, v := range input {
			if !(v >= p.lo && v <= p.hi) {
				return nil, fmt.Errorf("%w: input[%d] = %v, want [%v, %v]", ErrInputOutOfRange, i, v, p.lo, p.hi)
			}
		}
	}

	net, _ := p.pool.Get().(*nn.Network)
	defer p.pool.Put(net)
	return net.Predict(input)
}

// Classify returns the most probable class and its output value.
func (p *Predictor) Classify(input []float64) (int, float64, error) {
	out, err := p.Predict(input)
	if err != nil {
		return -1, 0, err
	}
	c := tensor.Argmax(out)
	return c, out[c], nil
}

// InputWidth returns the number of values Predict expects.
func (p *Predictor) InputWidth() int {
	return p.proto.InputWidth()
}

// OutputWidth returns the number of values Predict returns.
func (p *Predictor) OutputWidth() int {
	return p.proto.OutputWidth()
}

// Normalization returns the pixel normalization the model was trained with,
// or "" when the model does not record one. Inputs should be prepared the
// same way.
func (p *Predictor) Normalization() string {
	return p.header.Metadata[serialization.MetadataNormalization]
}

// ModelID returns the ID stamped into the model file, or "" for a Predictor
// built with New.
func (p *Predictor) ModelID() string {
	return p.header.ModelID
}

// Architecture describes the served network.
func (p *Predictor) Architecture() nn.Architecture {
	return p.proto.Architecture()
}
