// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Errors

var (
	// ErrShapeMismatch reports a vector whose length does not fit a layer.
	ErrShapeMismatch = nn.ErrShapeMismatch
	// ErrBackwardWithoutForward reports a backward pass with no cached forward pass.
	ErrBackwardWithoutForward = nn.ErrBackwardWithoutForward
	// ErrNumericInstability reports a NaN or infinite loss or activation.
	ErrNumericInstability = nn.ErrNumericInstability
	// ErrInvalidConfiguration reports an invalid architecture or option.
	ErrInvalidConfiguration = nn.ErrInvalidConfiguration
)

// ShapeError describes a length disagreement.
type ShapeError = nn.ShapeError

// NumericError describes a non-finite value.
type NumericError = nn.NumericError

// Activations and losses

// Activation selects a layer's non-linearity.
type Activation = nn.Activation

// Supported activations.
const (
	Identity = nn.Identity
	ReLU     = nn.ReLU
	Sigmoid  = nn.Sigmoid
	Softmax  = nn.Softmax
)

// ParseActivation maps a tag such as "relu" to an Activation.
func ParseActivation(s string) (Activation, error) {
	return nn.ParseActivation(s)
}

// Loss selects how predictions are scored against targets.
type Loss = nn.Loss

// Supported losses.
const (
	MeanSquaredError = nn.MeanSquaredError
	CrossEntropy     = nn.CrossEntropy
)

// ParseLoss maps a tag such as "cross_entropy" to a Loss.
func ParseLoss(s string) (Loss, error) {
	return nn.ParseLoss(s)
}

// Layers

// DenseLayer is a fully connected layer with an activation.
type DenseLayer = nn.DenseLayer

// Gradient holds the weight and bias gradients of one layer.
type Gradient = nn.Gradient

// NewDenseLayer creates a layer with uniformly initialized weights and zero
// bias.
func NewDenseLayer(in, out int, act Activation, rng *rand.Rand) (*DenseLayer, error) {
	return nn.NewDenseLayer(in, out, act, rng)
}

// NewDenseLayerFrom creates a layer from explicit row-major weights and
// bias.
func NewDenseLayerFrom(in, out int, act Activation, weights, bias []float64) (*DenseLayer, error) {
	return nn.NewDenseLayerFrom(in, out, act, weights, bias)
}

// NewRand returns a seeded random source; seed 0 seeds from the clock.
func NewRand(seed int64) *rand.Rand {
	return nn.NewRand(seed)
}

// Networks

// Network is an ordered chain of dense layers plus a loss.
type Network = nn.Network

// Architecture describes a network's layers and loss.
type Architecture = nn.Architecture

// LayerSpec describes one layer of an Architecture.
type LayerSpec = nn.LayerSpec

// Sample is one input paired with its target.
type Sample = nn.Sample

// StepResult summarizes one training step.
type StepResult = nn.StepResult

// NewNetwork chains layers whose widths connect.
func NewNetwork(loss Loss, layers ...*DenseLayer) (*Network, error) {
	return nn.NewNetwork(loss, layers...)
}

// Build creates a freshly initialized network for arch.
//
// Example:
//
//	net, err := nn.Build(nn.Architecture{
//	    Loss:   nn.MeanSquaredError,
//	    Layers: []nn.LayerSpec{{InputWidth: 2, OutputWidth: 1, Activation: nn.Sigmoid}},
//	}, nn.NewRand(1))
func Build(arch Architecture, rng *rand.Rand) (*Network, error) {
	return nn.Build(arch, rng)
}

// Parameters

// Parameter is a named view of a trainable buffer.
type Parameter = nn.Parameter

// Update pairs a parameter with its averaged gradient.
type Update = nn.Update

// Updater applies gradient updates; optimizers implement it.
type Updater = nn.Updater
