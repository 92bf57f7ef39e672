// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader saves and loads networks in the .dnet format.
//
// Example usage:
//
//	import "github.com/densenet-ml/densenet/loader"
//
//	// Save a trained network with its input normalization
//	err := loader.Save("digits.dnet", net, loader.WithMetadata(map[string]string{
//	    loader.MetadataNormalization: "grayscale",
//	}))
//
//	// Load it back
//	model, err := loader.Load("digits.dnet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Model: %s\n", model.Header.ModelID)
//	probs, err := model.Network.Predict(pixels)
//
// Files that fail validation return an error matching ErrCorruptModel.
package loader

import (
	"github.com/densenet-ml/densenet/internal/serialization"
	"github.com/densenet-ml/densenet/nn"
)

// ErrCorruptModel is matched by every decoding failure.
var ErrCorruptModel = serialization.ErrCorruptModel

// Model is a decoded .dnet file.
type Model = serialization.Model

// Header is the JSON header of a .dnet file.
type Header = serialization.Header

// CheckpointMeta is the training state recorded in a checkpoint.
type CheckpointMeta = serialization.CheckpointMeta

// Option customizes how a file is written.
type Option = serialization.Option

// Well-known metadata keys.
const (
	MetadataNormalization = serialization.MetadataNormalization
	MetadataDataset       = serialization.MetadataDataset
)

// WithMetadata attaches custom key/value metadata.
func WithMetadata(md map[string]string) Option {
	return serialization.WithMetadata(md)
}

// WithCheckpoint stores training state and optimizer buffers alongside the
// parameters.
func WithCheckpoint(meta CheckpointMeta, state map[string][]float64) Option {
	return serialization.WithCheckpoint(meta, state)
}

// Save writes net to path atomically.
func Save(path string, net *nn.Network, opts ...Option) error {
	return serialization.SaveFile(path, net, opts...)
}

// Load reads and validates a .dnet file.
func Load(path string) (*Model, error) {
	return serialization.LoadFile(path)
}

// Encode serializes net to bytes.
func Encode(net *nn.Network, opts ...Option) ([]byte, error) {
	return serialization.Encode(net, opts...)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Model, error) {
	return serialization.Decode(data)
}
