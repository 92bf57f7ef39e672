// Package nn implements the feed-forward network engine.
//
// This package provides:
//   - Activation: Identity, ReLU, Sigmoid, Softmax with hand-derived derivatives
//   - Loss: MeanSquaredError, CrossEntropy and their gradients
//   - DenseLayer: a fully connected layer with forward/backward passes
//   - Network: an ordered chain of layers with inference and training steps
//
// Vectors are []float64; weights are gonum matrices. All operations are
// synchronous and allocate their results; there is no internal locking.
//
// Example:
//
//	net, err := nn.Build(nn.Architecture{
//	    Loss: nn.CrossEntropy,
//	    Layers: []nn.LayerSpec{
//	        {InputWidth: 784, OutputWidth: 128, Activation: nn.ReLU},
//	        {InputWidth: 128, OutputWidth: 10, Activation: nn.Softmax},
//	    },
//	}, nil)
//
//	probs, err := net.Predict(image)
//	loss, err := net.TrainStep(batch, optim.NewSGD(optim.SGDConfig{LR: 0.01}))
package nn
