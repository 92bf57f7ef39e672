// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package loader_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/densenet-ml/densenet/inference"
	"github.com/densenet-ml/densenet/loader"
	"github.com/densenet-ml/densenet/nn"
)

func TestSaveLoadPredict(t *testing.T) {
	net, err := nn.Build(nn.Architecture{
		Loss: nn.CrossEntropy,
		Layers: []nn.LayerSpec{
			{InputWidth: 4, OutputWidth: 5, Activation: nn.ReLU},
			{InputWidth: 5, OutputWidth: 3, Activation: nn.Softmax},
		},
	}, nn.NewRand(9))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tiny.dnet")
	err = loader.Save(path, net, loader.WithMetadata(map[string]string{loader.MetadataDataset: "unit"}))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	model, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := model.Header.Metadata[loader.MetadataDataset]; got != "unit" {
		t.Errorf("dataset metadata = %q, want %q", got, "unit")
	}

	input := []float64{0.1, 0.2, 0.3, 0.4}
	want, err := net.Predict(input)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	p, err := inference.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	got, err := p.Predict(input)
	if err != nil {
		t.Fatalf("Predictor.Predict: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("output[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	if _, err := loader.Decode([]byte("not a model")); !errors.Is(err, loader.ErrCorruptModel) {
		t.Errorf("Decode error = %v, want ErrCorruptModel", err)
	}
}
