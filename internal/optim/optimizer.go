// Package optim implements optimization algorithms for training networks.
//
// This package provides:
//   - Optimizer interface: an nn.Updater with learning-rate control and
//     exportable state
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation
//
// Example usage:
//
//	optimizer := optim.NewSGD(optim.SGDConfig{LR: 0.01})
//
//	for _, batch := range batches {
//	    loss, err := net.TrainStep(batch, optimizer)
//	    ...
//	}
package optim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/densenet-ml/densenet/internal/nn"
)

// ErrStateMismatch is returned by LoadStateDict when a state buffer does not
// fit the optimizer.
var ErrStateMismatch = errors.New("optimizer state mismatch")

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update parameters in place from the averaged gradients the
// network hands them in Step. State is keyed by parameter name, so one
// optimizer must drive exactly one network.
type Optimizer interface {
	nn.Updater

	// Name returns the algorithm name ("sgd", "adam").
	Name() string

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate.
	SetLR(lr float64)

	// StateDict exports the optimizer's per-parameter buffers.
	//
	// The returned slices are copies; the map is empty for a stateless
	// optimizer or before the first Step.
	StateDict() map[string][]float64

	// LoadStateDict restores buffers exported by StateDict.
	LoadStateDict(state map[string][]float64) error
}

// Config selects and configures an optimizer by name.
type Config struct {
	Name     string  // "sgd" (default) or "adam"
	LR       float64 // Learning rate
	Momentum float64 // SGD only
	Beta1    float64 // Adam only
	Beta2    float64 // Adam only
	Eps      float64 // Adam only
}

// New creates the optimizer described by cfg. Zero fields take the
// algorithm's defaults.
func New(cfg Config) (Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "sgd":
		if cfg.Momentum < 0 || cfg.Momentum >= 1 {
			return nil, fmt.Errorf("%w: sgd momentum must be in [0, 1), got %v", nn.ErrInvalidConfiguration, cfg.Momentum)
		}
		return NewSGD(SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	case "adam":
		return NewAdam(AdamConfig{LR: cfg.LR, Betas: [2]float64{cfg.Beta1, cfg.Beta2}, Eps: cfg.Eps}), nil
	default:
		return nil, fmt.Errorf("%w: unknown optimizer %q", nn.ErrInvalidConfiguration, cfg.Name)
	}
}

// checkUpdate verifies that a gradient fits its parameter.
func checkUpdate(u nn.Update) error {
	if len(u.Grad) != len(u.Value) {
		return &nn.ShapeError{Op: "step " + u.Name, Layer: -1, Expected: len(u.Value), Got: len(u.Grad)}
	}
	return nil
}

// checkState verifies that an existing state buffer still fits its parameter.
// A missing buffer is fine; it is created on first use.
func checkState(kind string, u nn.Update, buf []float64, ok bool) error {
	if ok && len(buf) != len(u.Value) {
		return fmt.Errorf("%w: %s buffer for %s has %d values, parameter has %d",
			ErrStateMismatch, kind, u.Name, len(buf), len(u.Value))
	}
	return nil
}

// copyState returns a deep copy of a buffer map.
func copyState(src map[string][]float64, prefix string, dst map[string][]float64) {
	for name, buf := range src {
		c := make([]float64, len(buf))
		copy(c, buf)
		dst[prefix+name] = c
	}
}

// Hyperparameters returns the settings of opt other than the learning rate,
// keyed the way Restore reads them back.
func Hyperparameters(opt Optimizer) map[string]float64 {
	switch o := opt.(type) {
	case *SGD:
		return map[string]float64{"momentum": o.momentum}
	case *Adam:
		return map[string]float64{"beta1": o.beta1, "beta2": o.beta2, "eps": o.eps}
	default:
		return nil
	}
}

// Restore recreates a saved optimizer from its name, learning rate,
// Hyperparameters and StateDict.
func Restore(name string, lr float64, hp map[string]float64, state map[string][]float64) (Optimizer, error) {
	opt, err := New(Config{
		Name:     name,
		LR:       lr,
		Momentum: hp["momentum"],
		Beta1:    hp["beta1"],
		Beta2:    hp["beta2"],
		Eps:      hp["eps"],
	})
	if err != nil {
		return nil, err
	}
	if err := opt.LoadStateDict(state); err != nil {
		return nil, err
	}
	return opt, nil
}
