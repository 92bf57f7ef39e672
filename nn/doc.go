// Copyright 2025 DenseNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides fully connected feed-forward networks trained by
// backpropagation.
//
// # Overview
//
// A Network is an ordered chain of DenseLayers. Each layer computes
// y = activation(W·x + b) with one of four closed-form activations
// (Identity, ReLU, Sigmoid, Softmax), and the network is scored with
// MeanSquaredError or CrossEntropy.
//
// # Basic Usage
//
//	import (
//	    "github.com/densenet-ml/densenet/nn"
//	    "github.com/densenet-ml/densenet/optim"
//	)
//
//	func main() {
//	    net, err := nn.Build(nn.Architecture{
//	        Loss: nn.CrossEntropy,
//	        Layers: []nn.LayerSpec{
//	            {InputWidth: 784, OutputWidth: 128, Activation: nn.ReLU},
//	            {InputWidth: 128, OutputWidth: 10, Activation: nn.Softmax},
//	        },
//	    }, nn.NewRand(42))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    opt := optim.NewSGD(optim.SGDConfig{LR: 0.01})
//	    for _, batch := range batches {
//	        loss, err := net.TrainStep(batch, opt)
//	        ...
//	    }
//
//	    probs, err := net.Predict(image)
//	}
//
// # Errors
//
// Every error wraps one of ErrShapeMismatch, ErrBackwardWithoutForward,
// ErrNumericInstability or ErrInvalidConfiguration; use errors.Is. Shape
// and numeric failures are also available as *ShapeError and
// *NumericError through errors.As.
//
// # Concurrency
//
// A Network keeps per-layer forward caches and is not safe for concurrent
// use. Clone it per goroutine, or serve predictions through the inference
// package.
package nn
