package optim

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/densenet-ml/densenet/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	lr         float64
	momentum   float64
	velocities map[string][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[string][]float64),
	}
}

// Step applies one gradient descent update to every parameter.
//
// All gradients and restored velocities are checked before any parameter is
// written.
func (s *SGD) Step(updates []nn.Update) error {
	for _, u := range updates {
		if err := checkUpdate(u); err != nil {
			return err
		}
		velocity, ok := s.velocities[u.Name]
		if err := checkState("velocity", u, velocity, ok); err != nil {
			return err
		}
	}

	for _, u := range updates {
		if s.momentum == 0 {
			// param -= lr * grad
			floats.AddScaled(u.Value, -s.lr, u.Grad)
			continue
		}

		velocity, exists := s.velocities[u.Name]
		if !exists {
			velocity = make([]float64, len(u.Value))
			s.velocities[u.Name] = velocity
		}

		// velocity = momentum * velocity + grad
		floats.Scale(s.momentum, velocity)
		floats.Add(velocity, u.Grad)

		// param -= lr * velocity
		floats.AddScaled(u.Value, -s.lr, velocity)
	}
	return nil
}

// Name returns "sgd".
func (s *SGD) Name() string { return "sgd" }

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Momentum returns the momentum factor.
func (s *SGD) Momentum() float64 {
	return s.momentum
}

// StateDict exports velocity buffers as "velocity.<param>".
// Without momentum it returns an empty map.
func (s *SGD) StateDict() map[string][]float64 {
	state := make(map[string][]float64)
	if s.momentum == 0 {
		return state
	}
	copyState(s.velocities, "velocity.", state)
	return state
}

// LoadStateDict restores velocity buffers. With momentum 0 the state is
// ignored.
func (s *SGD) LoadStateDict(state map[string][]float64) error {
	if s.momentum == 0 {
		return nil
	}

	velocities := make(map[string][]float64, len(state))
	for key, buf := range state {
		name, ok := strings.CutPrefix(key, "velocity.")
		if !ok {
			return fmt.Errorf("%w: unexpected sgd state key %q", ErrStateMismatch, key)
		}
		c := make([]float64, len(buf))
		copy(c, buf)
		velocities[name] = c
	}
	s.velocities = velocities
	return nil
}
