package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/densenet-ml/densenet/internal/tensor"
)

// Sample is one labeled training example. Target is typically one-hot.
type Sample struct {
	Input  []float64
	Target []float64
}

// StepResult summarizes the forward half of a training step.
type StepResult struct {
	Loss    float64 // Mean loss over the samples
	Correct int     // Samples whose output argmax matches the target argmax
	Samples int
}

// Network is an ordered chain of DenseLayers trained against one Loss.
//
// The network exclusively owns its layers. Predict and the training methods
// mutate per-layer forward caches, so a Network must not be used from more
// than one goroutine at a time; use Clone to give each goroutine its own.
type Network struct {
	layers []*DenseLayer
	loss   Loss
}

// LayerSpec is the architecture of one layer.
type LayerSpec struct {
	InputWidth  int
	OutputWidth int
	Activation  Activation
}

// Architecture is the shape of a network without its parameters.
type Architecture struct {
	Layers []LayerSpec
	Loss   Loss
}

// Validate checks the invariants NewNetwork enforces: at least one layer,
// positive widths, known tags, and each layer's input width equal to the
// previous layer's output width.
func (a Architecture) Validate() error {
	if len(a.Layers) == 0 {
		return invalidConfig("network needs at least one layer")
	}
	if !a.Loss.Valid() {
		return invalidConfig("unknown loss %d", uint8(a.Loss))
	}
	for i, s := range a.Layers {
		if s.InputWidth <= 0 || s.OutputWidth <= 0 {
			return invalidConfig("layer %d: widths must be positive, got %d→%d", i, s.InputWidth, s.OutputWidth)
		}
		if !s.Activation.Valid() {
			return invalidConfig("layer %d: unknown activation %d", i, uint8(s.Activation))
		}
		if i > 0 && s.InputWidth != a.Layers[i-1].OutputWidth {
			return invalidConfig("layer %d: input width %d does not match previous output width %d",
				i, s.InputWidth, a.Layers[i-1].OutputWidth)
		}
	}
	return nil
}

// NumParameters returns the total number of weights and biases.
func (a Architecture) NumParameters() int {
	n := 0
	for _, s := range a.Layers {
		n += s.OutputWidth*s.InputWidth + s.OutputWidth
	}
	return n
}

// NewNetwork composes layers into a network. The layers become owned by the
// network and must not be shared with another one.
func NewNetwork(loss Loss, layers ...*DenseLayer) (*Network, error) {
	arch := Architecture{Loss: loss, Layers: make([]LayerSpec, len(layers))}
	for i, l := range layers {
		if l == nil {
			return nil, invalidConfig("layer %d is nil", i)
		}
		arch.Layers[i] = LayerSpec{InputWidth: l.InputWidth(), OutputWidth: l.OutputWidth(), Activation: l.activation}
	}
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	for i, l := range layers {
		l.index = i
		l.cache = nil
	}
	return &Network{layers: layers, loss: loss}, nil
}

// Build creates a freshly initialized network for arch, drawing weights from
// rng (clock-seeded when nil).
func Build(arch Architecture, rng *rand.Rand) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}

	layers := make([]*DenseLayer, len(arch.Layers))
	for i, s := range arch.Layers {
		l, err := NewDenseLayer(s.InputWidth, s.OutputWidth, s.Activation, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = l
	}
	return NewNetwork(arch.Loss, layers...)
}

// Predict runs input through every layer and returns the last layer's output
// unmodified. Parameters are not mutated; each layer's forward cache is
// replaced.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if err := checkLen("predict", -1, n.InputWidth(), len(input)); err != nil {
		return nil, err
	}

	out := input
	for _, l := range n.layers {
		next, err := l.Forward(out)
		if err != nil {
			n.resetCaches()
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Gradients runs a forward and a backward pass for one sample and returns
// the per-layer gradients without applying them.
//
// When the output layer is Softmax and the loss is CrossEntropy the output
// delta is p - t (SoftmaxCrossEntropyDelta); otherwise the loss gradient is
// propagated through the output activation's derivative.
func (n *Network) Gradients(s Sample) (StepResult, []*Gradient, error) {
	out, err := n.Predict(s.Input)
	if err != nil {
		return StepResult{}, nil, err
	}
	if err := checkLen("target", -1, n.OutputWidth(), len(s.Target)); err != nil {
		n.resetCaches()
		return StepResult{}, nil, err
	}

	loss, err := ComputeLoss(n.loss, out, s.Target)
	if err != nil {
		n.resetCaches()
		return StepResult{}, nil, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		n.resetCaches()
		return StepResult{}, nil, &NumericError{Op: "loss " + n.loss.String(), Layer: -1, Value: loss}
	}

	grads := make([]*Gradient, len(n.layers))
	last := len(n.layers) - 1
	outLayer := n.layers[last]

	var downstream []float64
	if FusedSoftmaxCrossEntropy(outLayer.activation, n.loss) {
		delta, err := SoftmaxCrossEntropyDelta(out, s.Target)
		if err != nil {
			n.resetCaches()
			return StepResult{}, nil, err
		}
		grads[last], downstream, err = outLayer.BackwardDelta(delta)
		if err != nil {
			n.resetCaches()
			return StepResult{}, nil, err
		}
	} else {
		g, err := LossGradient(n.loss, out, s.Target)
		if err != nil {
			n.resetCaches()
			return StepResult{}, nil, err
		}
		grads[last], downstream, err = outLayer.Backward(g)
		if err != nil {
			n.resetCaches()
			return StepResult{}, nil, err
		}
	}

	for i := last - 1; i >= 0; i-- {
		grads[i], downstream, err = n.layers[i].Backward(downstream)
		if err != nil {
			n.resetCaches()
			return StepResult{}, nil, err
		}
	}

	res := StepResult{Loss: loss, Samples: 1}
	if tensor.Argmax(out) == tensor.Argmax(s.Target) {
		res.Correct = 1
	}
	return res, grads, nil
}

// BatchGradients returns the gradients averaged over batch and the mean loss.
//
// Each sample's gradients are computed independently and summed; the sum is
// scaled by 1/len(batch) once at the end. No parameter is touched.
func (n *Network) BatchGradients(batch []Sample) (StepResult, []*Gradient, error) {
	if len(batch) == 0 {
		return StepResult{}, nil, invalidConfig("empty batch")
	}

	acc := make([]*Gradient, len(n.layers))
	for i, l := range n.layers {
		acc[i] = l.zeroGradient()
	}

	var total StepResult
	var lossSum float64
	for si, s := range batch {
		res, grads, err := n.Gradients(s)
		if err != nil {
			return StepResult{}, nil, fmt.Errorf("sample %d: %w", si, err)
		}
		for i, g := range grads {
			acc[i].Add(g)
		}
		lossSum += res.Loss
		total.Correct += res.Correct
		total.Samples++
	}

	k := float64(len(batch))
	for _, g := range acc {
		g.Scale(1 / k)
	}
	total.Loss = lossSum / k
	return total, acc, nil
}

// Apply hands one gradient per layer to u.
func (n *Network) Apply(u Updater, grads []*Gradient) error {
	if err := checkLen("apply", -1, len(n.layers), len(grads)); err != nil {
		return err
	}

	updates := make([]Update, 0, 2*len(n.layers))
	for i, l := range n.layers {
		g := grads[i]
		if g == nil {
			return invalidConfig("apply: missing gradient for layer %d", i)
		}
		params := l.Parameters()
		updates = append(updates,
			Update{Parameter: params[0], Grad: g.Weights.RawMatrix().Data},
			Update{Parameter: params[1], Grad: g.Bias.RawVector().Data},
		)
	}
	return u.Step(updates)
}

// Step computes the averaged gradients of batch, applies them with u and
// reports loss and accuracy. A batch of one is per-sample SGD.
func (n *Network) Step(batch []Sample, u Updater) (StepResult, error) {
	res, grads, err := n.BatchGradients(batch)
	if err != nil {
		return StepResult{}, err
	}
	if err := n.Apply(u, grads); err != nil {
		return StepResult{}, err
	}
	return res, nil
}

// TrainStep performs one parameter update from batch and returns the mean
// loss measured before the update.
func (n *Network) TrainStep(batch []Sample, u Updater) (float64, error) {
	res, err := n.Step(batch, u)
	return res.Loss, err
}

// InputWidth returns the first layer's input width.
func (n *Network) InputWidth() int {
	return n.layers[0].InputWidth()
}

// OutputWidth returns the last layer's output width.
func (n *Network) OutputWidth() int {
	return n.layers[len(n.layers)-1].OutputWidth()
}

// Loss returns the loss the network trains against.
func (n *Network) Loss() Loss {
	return n.loss
}

// Layers returns the network's layers in order. The slice is a copy; the
// layers are not.
func (n *Network) Layers() []*DenseLayer {
	out := make([]*DenseLayer, len(n.layers))
	copy(out, n.layers)
	return out
}

// Architecture describes the network's shape.
func (n *Network) Architecture() Architecture {
	arch := Architecture{Loss: n.loss, Layers: make([]LayerSpec, len(n.layers))}
	for i, l := range n.layers {
		arch.Layers[i] = LayerSpec{InputWidth: l.InputWidth(), OutputWidth: l.OutputWidth(), Activation: l.activation}
	}
	return arch
}

// Parameters returns every trainable buffer in layer order, weight before
// bias. Values alias the network's storage.
func (n *Network) Parameters() []Parameter {
	params := make([]Parameter, 0, 2*len(n.layers))
	for _, l := range n.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// NumParameters returns the total number of weights and biases.
func (n *Network) NumParameters() int {
	total := 0
	for _, l := range n.layers {
		total += l.NumParameters()
	}
	return total
}

// Clone returns an independent deep copy, suitable for another goroutine.
func (n *Network) Clone() *Network {
	layers := make([]*DenseLayer, len(n.layers))
	for i, l := range n.layers {
		layers[i] = l.Clone()
	}
	return &Network{layers: layers, loss: n.loss}
}

func (n *Network) resetCaches() {
	for _, l := range n.layers {
		l.cache = nil
	}
}
