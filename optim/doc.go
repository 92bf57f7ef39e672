// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Every Optimizer is an nn.Updater, so it can be handed straight to
// Network.TrainStep:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	for _, batch := range batches {
//	    loss, err := net.TrainStep(batch, opt)
//	    ...
//	}
//
// # State
//
// Optimizer state is keyed by parameter name and exported with StateDict,
// which is what training checkpoints store. Restore rebuilds an optimizer
// from a checkpoint:
//
//	opt, err := optim.Restore(name, lr, optim.Hyperparameters(old), old.StateDict())
package optim
