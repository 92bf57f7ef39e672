// Package config loads the YAML run file used by the densenet command.
//
// A run file only needs the fields it changes; everything else keeps the
// values from Default:
//
//	model:
//	  input_width: 784
//	  layers:
//	    - {width: 128, activation: relu}
//	    - {width: 64, activation: relu}
//	    - {width: 10, activation: softmax}
//	  loss: cross_entropy
//	training:
//	  learning_rate: 0.01
//	  epochs: 30
//	  batch_size: 64
//	  shuffle: true
//	  optimizer: sgd
//	data:
//	  dir: ./data/mnist
//	  normalization: grayscale
//	output:
//	  model_path: model.dnet
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/densenet-ml/densenet/internal/dataset"
	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/optim"
	"github.com/densenet-ml/densenet/internal/train"
)

// Config is a complete run description.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Data     DataConfig     `yaml:"data"`
	Output   OutputConfig   `yaml:"output"`
}

// ModelConfig describes the network architecture.
type ModelConfig struct {
	InputWidth int           `yaml:"input_width"`
	Layers     []LayerConfig `yaml:"layers"`
	Loss       string        `yaml:"loss"`
}

// LayerConfig is one dense layer; its input width is the previous layer's
// width.
type LayerConfig struct {
	Width      int    `yaml:"width"`
	Activation string `yaml:"activation"`
}

// TrainingConfig holds the training loop and optimizer options.
type TrainingConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Shuffle      bool    `yaml:"shuffle"`
	Seed         int64   `yaml:"seed"`
	Optimizer    string  `yaml:"optimizer"`
	Momentum     float64 `yaml:"momentum"`
}

// DataConfig selects the training and test data.
type DataConfig struct {
	Dir           string `yaml:"dir"`
	TrainLimit    int    `yaml:"train_limit"`
	TestLimit     int    `yaml:"test_limit"`
	Normalization string `yaml:"normalization"`
	Synthetic     int    `yaml:"synthetic"` // Generate this many samples instead of reading Dir
}

// OutputConfig says where trained models and checkpoints go.
type OutputConfig struct {
	ModelPath       string `yaml:"model_path"`
	CheckpointDir   string `yaml:"checkpoint_dir"`
	CheckpointEvery int    `yaml:"checkpoint_every"` // Epochs between checkpoints; 0 disables
}

// Default returns the MNIST digit classifier run: 784→128→64→10 with ReLU
// hidden layers, a Softmax output and CrossEntropy loss, trained with plain
// SGD for 30 epochs of batch 64.
func Default() Config {
	tc := train.DefaultConfig()
	return Config{
		Model: ModelConfig{
			InputWidth: dataset.InputWidth,
			Layers: []LayerConfig{
				{Width: 128, Activation: "relu"},
				{Width: 64, Activation: "relu"},
				{Width: dataset.NumClasses, Activation: "softmax"},
			},
			Loss: "cross_entropy",
		},
		Training: TrainingConfig{
			LearningRate: tc.LearningRate,
			Epochs:       tc.Epochs,
			BatchSize:    tc.BatchSize,
			Shuffle:      tc.Shuffle,
			Optimizer:    "sgd",
		},
		Data: DataConfig{
			Dir:           "data/mnist",
			Normalization: string(dataset.Grayscale),
		},
		Output: OutputConfig{
			ModelPath: "model.dnet",
		},
	}
}

// Load reads a run file on top of Default.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: config path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are errors.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", nn.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := c.Architecture(); err != nil {
		return err
	}
	if err := c.TrainConfig().Validate(); err != nil {
		return err
	}
	if _, err := optim.New(c.OptimizerConfig()); err != nil {
		return err
	}
	if _, err := c.Normalization(); err != nil {
		return err
	}
	if c.Data.TrainLimit < 0 || c.Data.TestLimit < 0 || c.Data.Synthetic < 0 {
		return fmt.Errorf("%w: data limits must not be negative", nn.ErrInvalidConfiguration)
	}
	if c.Output.CheckpointEvery < 0 {
		return fmt.Errorf("%w: checkpoint_every must not be negative", nn.ErrInvalidConfiguration)
	}
	if c.Output.CheckpointEvery > 0 && c.Output.CheckpointDir == "" {
		return fmt.Errorf("%w: checkpoint_every needs checkpoint_dir", nn.ErrInvalidConfiguration)
	}
	return nil
}

// Architecture converts the model section into an nn.Architecture.
func (c Config) Architecture() (nn.Architecture, error) {
	loss, err := nn.ParseLoss(c.Model.Loss)
	if err != nil {
		return nn.Architecture{}, err
	}

	arch := nn.Architecture{Loss: loss, Layers: make([]nn.LayerSpec, len(c.Model.Layers))}
	in := c.Model.InputWidth
	for i, l := range c.Model.Layers {
		act, err := nn.ParseActivation(l.Activation)
		if err != nil {
			return nn.Architecture{}, fmt.Errorf("layer %d: %w", i, err)
		}
		arch.Layers[i] = nn.LayerSpec{InputWidth: in, OutputWidth: l.Width, Activation: act}
		in = l.Width
	}
	if err := arch.Validate(); err != nil {
		return nn.Architecture{}, err
	}
	return arch, nil
}

// TrainConfig returns the training loop options.
func (c Config) TrainConfig() train.Config {
	return train.Config{
		LearningRate: c.Training.LearningRate,
		Epochs:       c.Training.Epochs,
		BatchSize:    c.Training.BatchSize,
		Shuffle:      c.Training.Shuffle,
		Seed:         c.Training.Seed,
	}
}

// OptimizerConfig returns the optimizer selection.
func (c Config) OptimizerConfig() optim.Config {
	return optim.Config{
		Name:     c.Training.Optimizer,
		LR:       c.Training.LearningRate,
		Momentum: c.Training.Momentum,
	}
}

// Normalization returns the parsed pixel normalization.
func (c Config) Normalization() (dataset.Normalization, error) {
	return dataset.ParseNormalization(c.Data.Normalization)
}
