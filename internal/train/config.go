// Package train drives epochs of mini-batch gradient descent over a sample
// set and evaluates trained networks.
package train

import (
	"fmt"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Config holds the training loop options.
type Config struct {
	LearningRate float64 // Step size (default: 0.01)
	Epochs       int     // Full passes over the samples (default: 30)
	BatchSize    int     // Samples per update; 1 is per-sample SGD (default: 64)
	Shuffle      bool    // Permute sample order every epoch
	Seed         int64   // Shuffle seed; 0 draws one from the clock
}

// DefaultConfig returns the settings used for MNIST digit classification.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.01,
		Epochs:       30,
		BatchSize:    64,
		Shuffle:      true,
	}
}

// Validate reports options the training loop cannot run with.
func (c Config) Validate() error {
	switch {
	case !(c.LearningRate > 0):
		return fmt.Errorf("%w: learning rate must be positive, got %v", nn.ErrInvalidConfiguration, c.LearningRate)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", nn.ErrInvalidConfiguration, c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", nn.ErrInvalidConfiguration, c.BatchSize)
	}
	return nil
}
