package optim

import (
	"fmt"
	"math"
	"strings"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int                  // Timestep for bias correction
	m     map[string][]float64 // First moment estimates
	v     map[string][]float64 // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[string][]float64),
		v:     make(map[string][]float64),
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step(updates []nn.Update) error {
	for _, u := range updates {
		if err := checkUpdate(u); err != nil {
			return err
		}
		m, ok := a.m[u.Name]
		if err := checkState("m", u, m, ok); err != nil {
			return err
		}
		v, ok := a.v[u.Name]
		if err := checkState("v", u, v, ok); err != nil {
			return err
		}
	}

	a.t++
	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, u := range updates {
		m, ok := a.m[u.Name]
		if !ok {
			m = make([]float64, len(u.Value))
			a.m[u.Name] = m
		}
		v, ok := a.v[u.Name]
		if !ok {
			v = make([]float64, len(u.Value))
			a.v[u.Name] = v
		}

		for i, g := range u.Grad {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g

			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2

			u.Value[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// Name returns "adam".
func (a *Adam) Name() string { return "adam" }

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam) GetTimestep() int {
	return a.t
}

// StateDict exports "m.<param>", "v.<param>" and the timestep under "t".
func (a *Adam) StateDict() map[string][]float64 {
	state := make(map[string][]float64)
	if a.t == 0 {
		return state
	}
	copyState(a.m, "m.", state)
	copyState(a.v, "v.", state)
	state["t"] = []float64{float64(a.t)}
	return state
}

// LoadStateDict restores moments and timestep exported by StateDict.
func (a *Adam) LoadStateDict(state map[string][]float64) error {
	m := make(map[string][]float64)
	v := make(map[string][]float64)
	t := 0

	for key, buf := range state {
		c := make([]float64, len(buf))
		copy(c, buf)

		switch {
		case key == "t":
			if len(buf) != 1 || buf[0] < 0 || buf[0] != math.Trunc(buf[0]) {
				return fmt.Errorf("%w: invalid adam timestep %v", ErrStateMismatch, buf)
			}
			t = int(buf[0])
		case strings.HasPrefix(key, "m."):
			m[strings.TrimPrefix(key, "m.")] = c
		case strings.HasPrefix(key, "v."):
			v[strings.TrimPrefix(key, "v.")] = c
		default:
			return fmt.Errorf("%w: unexpected adam state key %q", ErrStateMismatch, key)
		}
	}
	for name, buf := range m {
		if other, ok := v[name]; !ok || len(other) != len(buf) {
			return fmt.Errorf("%w: moments for %q do not pair up", ErrStateMismatch, name)
		}
	}
	if len(m) != len(v) {
		return fmt.Errorf("%w: %d first moments, %d second moments", ErrStateMismatch, len(m), len(v))
	}

	a.m, a.v, a.t = m, v, t
	return nil
}
