// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/densenet-ml/densenet/internal/optim"
)

// ErrStateMismatch is returned when saved state does not fit an optimizer.
var ErrStateMismatch = optim.ErrStateMismatch

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config selects and configures an optimizer by name.
type Config = optim.Config

// New creates the optimizer named in cfg.
func New(cfg Config) (Optimizer, error) {
	return optim.New(cfg)
}

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}

// Checkpoints

// Hyperparameters returns opt's settings other than the learning rate.
func Hyperparameters(opt Optimizer) map[string]float64 {
	return optim.Hyperparameters(opt)
}

// Restore recreates a saved optimizer.
func Restore(name string, lr float64, hp map[string]float64, state map[string][]float64) (Optimizer, error) {
	return optim.Restore(name, lr, hp, state)
}
