// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package inference serves predictions from trained .dnet models.
//
// A Predictor is safe for concurrent use:
//
//	p, err := inference.FromFile("model.dnet", inference.WithInputRange(0, 1))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	class, prob, err := p.Classify(pixels)
package inference

import (
	"github.com/densenet-ml/densenet/internal/inference"
	"github.com/densenet-ml/densenet/nn"
)

// ErrInputOutOfRange is returned when an input value falls outside the range
// set with WithInputRange.
var ErrInputOutOfRange = inference.ErrInputOutOfRange

// Predictor is a read-only, goroutine-safe view of a trained network.
type Predictor = inference.Predictor

// Option configures a Predictor.
type Option = inference.Option

// WithInputRange rejects inputs with any value outside [lo, hi].
func WithInputRange(lo, hi float64) Option {
	return inference.WithInputRange(lo, hi)
}

// New serves a copy of net.
func New(net *nn.Network, opts ...Option) (*Predictor, error) {
	return inference.New(net, opts...)
}

// FromBytes decodes a .dnet model.
func FromBytes(data []byte, opts ...Option) (*Predictor, error) {
	return inference.FromBytes(data, opts...)
}

// FromFile loads a .dnet model from disk.
func FromFile(path string, opts ...Option) (*Predictor, error) {
	return inference.FromFile(path, opts...)
}
