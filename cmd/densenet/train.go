package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/densenet-ml/densenet/internal/config"
	"github.com/densenet-ml/densenet/internal/dataset"
	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/optim"
	"github.com/densenet-ml/densenet/internal/parallel"
	"github.com/densenet-ml/densenet/internal/serialization"
	"github.com/densenet-ml/densenet/internal/train"
)

// trainFlags are command-line overrides of the run file. Only flags the
// user set are applied.
type trainFlags struct {
	epochs          int
	batchSize       int
	learningRate    float64
	optimizer       string
	momentum        float64
	seed            int64
	dataDir         string
	synthetic       int
	limit           int
	testLimit       int
	normalization   string
	out             string
	checkpointDir   string
	checkpointEvery int
	resume          string
}

func newTrainCmd(a *app) *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a network and save it as a .dnet model",
		Example: `  densenet train --data ./data/mnist --epochs 10
  densenet train --synthetic 2000 --epochs 5 --out digits.dnet
  densenet train --resume checkpoints/checkpoint-epoch-0004.dnet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTrain(cmd.Context(), a.logger, cmd.OutOrStdout(), cfg, f.resume)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.epochs, "epochs", 0, "number of epochs")
	fl.IntVar(&f.batchSize, "batch-size", 0, "samples per update")
	fl.Float64Var(&f.learningRate, "lr", 0, "learning rate")
	fl.StringVar(&f.optimizer, "optimizer", "", "optimizer: sgd or adam")
	fl.Float64Var(&f.momentum, "momentum", 0, "SGD momentum in [0, 1)")
	fl.Int64Var(&f.seed, "seed", 0, "seed for weights, shuffling and synthetic data; 0 uses the clock")
	fl.StringVar(&f.dataDir, "data", "", "directory holding the MNIST .gz files")
	fl.IntVar(&f.synthetic, "synthetic", 0, "train on this many synthetic samples instead of MNIST")
	fl.IntVar(&f.limit, "limit", 0, "use at most this many training samples (0 = all)")
	fl.IntVar(&f.testLimit, "test-limit", 0, "use at most this many test samples (0 = all)")
	fl.StringVar(&f.normalization, "normalization", "", "pixel normalization: grayscale or binarized")
	fl.StringVarP(&f.out, "out", "o", "", "where to save the trained model")
	fl.StringVar(&f.checkpointDir, "checkpoint-dir", "", "directory for training checkpoints")
	fl.IntVar(&f.checkpointEvery, "checkpoint-every", 0, "save a checkpoint every N epochs (0 = never)")
	fl.StringVar(&f.resume, "resume", "", "continue training from a checkpoint file")
	return cmd
}

func (f *trainFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("epochs") {
		cfg.Training.Epochs = f.epochs
	}
	if set("batch-size") {
		cfg.Training.BatchSize = f.batchSize
	}
	if set("lr") {
		cfg.Training.LearningRate = f.learningRate
	}
	if set("optimizer") {
		cfg.Training.Optimizer = f.optimizer
	}
	if set("momentum") {
		cfg.Training.Momentum = f.momentum
	}
	if set("seed") {
		cfg.Training.Seed = f.seed
	}
	if set("data") {
		cfg.Data.Dir = f.dataDir
	}
	if set("synthetic") {
		cfg.Data.Synthetic = f.synthetic
	}
	if set("limit") {
		cfg.Data.TrainLimit = f.limit
	}
	if set("test-limit") {
		cfg.Data.TestLimit = f.testLimit
	}
	if set("normalization") {
		cfg.Data.Normalization = f.normalization
	}
	if set("out") {
		cfg.Output.ModelPath = f.out
	}
	if set("checkpoint-dir") {
		cfg.Output.CheckpointDir = f.checkpointDir
	}
	if set("checkpoint-every") {
		cfg.Output.CheckpointEvery = f.checkpointEvery
	}
}

func runTrain(ctx context.Context, logger *slog.Logger, out io.Writer, cfg config.Config, resume string) error {
	norm, err := cfg.Normalization()
	if err != nil {
		return err
	}

	var (
		net  *nn.Network
		opt  optim.Optimizer
		opts []train.Option
	)
	if resume != "" {
		m, err := serialization.LoadFile(resume)
		if err != nil {
			return err
		}
		if !m.IsCheckpoint() {
			return fmt.Errorf("%s is a model file, not a checkpoint", resume)
		}
		ck := m.Header.Checkpoint
		opt, err = optim.Restore(ck.OptimizerType, ck.LearningRate, ck.OptimizerConfig, m.OptimizerState)
		if err != nil {
			return fmt.Errorf("restore optimizer: %w", err)
		}
		net = m.Network
		opts = append(opts, train.WithResume(ck.Epoch, ck.Step))
		logger.Info("resuming from checkpoint", "path", resume, "epoch", ck.Epoch, "step", ck.Step, "optimizer", ck.OptimizerType)

		// The network was fitted to the checkpoint's inputs; keep feeding it the same.
		if recorded := m.Header.Metadata[serialization.MetadataNormalization]; recorded != "" {
			ckNorm, err := dataset.ParseNormalization(recorded)
			if err != nil {
				return fmt.Errorf("checkpoint %s: %w", resume, err)
			}
			if ckNorm != norm {
				logger.Warn("using the checkpoint's normalization", "checkpoint", ckNorm, "configured", norm)
				norm = ckNorm
			}
		}
	} else {
		arch, err := cfg.Architecture()
		if err != nil {
			return err
		}
		if net, err = nn.Build(arch, nn.NewRand(cfg.Training.Seed)); err != nil {
			return err
		}
		if opt, err = optim.New(cfg.OptimizerConfig()); err != nil {
			return err
		}
	}

	trainSet, testSet, source, err := loadData(cfg, norm)
	if err != nil {
		return err
	}
	logger.Info("data loaded", "source", source, "train", len(trainSet), "test", len(testSet), "normalization", norm)

	metadata := map[string]string{
		serialization.MetadataNormalization: string(norm),
		serialization.MetadataDataset:       source,
	}

	var tr *train.Trainer
	opts = append(opts, train.WithOptimizer(opt), train.WithLogger(logger))
	if every := cfg.Output.CheckpointEvery; every > 0 {
		opts = append(opts, train.WithEpochHook(func(_ context.Context, s train.EpochStats) error {
			if s.Epoch%every != 0 {
				return nil
			}
			path, err := saveCheckpoint(cfg.Output.CheckpointDir, tr, s, metadata)
			if err != nil {
				return err
			}
			logger.Info("checkpoint saved", "path", path, "epoch", s.Epoch)
			return nil
		}))
	}

	tr, err = train.New(net, cfg.TrainConfig(), opts...)
	if err != nil {
		return err
	}
	history, err := tr.Run(ctx, trainSet)
	if err != nil {
		return err
	}

	res, err := train.Evaluate(ctx, net, testSet, parallel.DefaultConfig())
	if err != nil {
		return err
	}
	logger.Info("evaluation complete", "loss", res.Loss, "accuracy", res.Accuracy, "samples", res.Samples)

	if err := serialization.SaveFile(cfg.Output.ModelPath, net, serialization.WithMetadata(metadata)); err != nil {
		return err
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		fmt.Fprintf(out, "epoch %d: train loss %.4f, train accuracy %.2f%%\n", last.Epoch, last.Loss, 100*last.Accuracy)
	}
	fmt.Fprintf(out, "test accuracy %.2f%% (%d/%d)\n", 100*res.Accuracy, res.Correct, res.Samples)
	fmt.Fprintf(out, "model saved to %s\n", cfg.Output.ModelPath)
	return nil
}

// loadData returns the training and test samples and a short name of their
// source for the model metadata.
func loadData(cfg config.Config, norm dataset.Normalization) (trainSet, testSet []nn.Sample, source string, err error) {
	if n := cfg.Data.Synthetic; n > 0 {
		seed := cfg.Training.Seed
		if seed == 0 {
			seed = nn.NewRand(0).Int63()
		}
		return dataset.Synthetic(n, seed, norm), dataset.Synthetic(max(n/5, dataset.NumClasses), seed+1, norm), "synthetic", nil
	}

	trainSet, err = dataset.LoadMNIST(cfg.Data.Dir, dataset.Train, cfg.Data.TrainLimit, norm)
	if err != nil {
		return nil, nil, "", err
	}
	testSet, err = dataset.LoadMNIST(cfg.Data.Dir, dataset.Test, cfg.Data.TestLimit, norm)
	if err != nil {
		return nil, nil, "", err
	}
	return trainSet, testSet, "mnist", nil
}

// saveCheckpoint writes the trainer's network and optimizer state after
// epoch s.Epoch and returns the file path.
func saveCheckpoint(dir string, tr *train.Trainer, s train.EpochStats, metadata map[string]string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	opt := tr.Optimizer()
	meta := serialization.CheckpointMeta{
		Epoch:           s.Epoch,
		Step:            tr.Steps(),
		Loss:            s.Loss,
		Accuracy:        s.Accuracy,
		OptimizerType:   opt.Name(),
		LearningRate:    opt.GetLR(),
		OptimizerConfig: optim.Hyperparameters(opt),
	}

	path := filepath.Join(dir, fmt.Sprintf("checkpoint-epoch-%04d.dnet", s.Epoch))
	err := serialization.SaveFile(path, tr.Network(), serialization.WithMetadata(metadata), serialization.WithCheckpoint(meta, opt.StateDict()))
	if err != nil {
		return "", err
	}
	return path, nil
}
