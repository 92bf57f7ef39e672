package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/densenet-ml/densenet/internal/config"
	"github.com/densenet-ml/densenet/internal/dataset"
	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/parallel"
	"github.com/densenet-ml/densenet/internal/serialization"
	"github.com/densenet-ml/densenet/internal/train"
)

type evalFlags struct {
	dataDir   string
	synthetic int
	limit     int
	seed      int64
	workers   int
	confusion bool
}

func newEvalCmd(a *app) *cobra.Command {
	var f evalFlags

	cmd := &cobra.Command{
		Use:   "eval MODEL",
		Short: "Measure a model's loss and accuracy on the MNIST test set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			set := cmd.Flags().Changed
			if set("data") {
				cfg.Data.Dir = f.dataDir
			}
			if set("synthetic") {
				cfg.Data.Synthetic = f.synthetic
			}
			if set("limit") {
				cfg.Data.TestLimit = f.limit
			}
			if set("seed") {
				cfg.Training.Seed = f.seed
			}

			pcfg := parallel.DefaultConfig()
			if f.workers > 0 {
				pcfg.NumWorkers = f.workers
			}
			return runEval(cmd.Context(), a.logger, cmd.OutOrStdout(), cfg, args[0], pcfg, f.confusion)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dataDir, "data", "", "directory holding the MNIST .gz files")
	fl.IntVar(&f.synthetic, "synthetic", 0, "evaluate on this many synthetic samples instead of MNIST")
	fl.IntVar(&f.limit, "limit", 0, "use at most this many test samples (0 = all)")
	fl.Int64Var(&f.seed, "seed", 0, "seed for synthetic samples")
	fl.IntVar(&f.workers, "workers", 0, "parallel workers (0 = one per physical core)")
	fl.BoolVar(&f.confusion, "confusion", false, "print the confusion matrix")
	return cmd
}

func runEval(ctx context.Context, logger *slog.Logger, out io.Writer, cfg config.Config, modelPath string, pcfg parallel.Config, confusion bool) error {
	m, err := serialization.LoadFile(modelPath)
	if err != nil {
		return err
	}

	// Inputs must be prepared the way the model was trained.
	norm, err := dataset.ParseNormalization(m.Header.Metadata[serialization.MetadataNormalization])
	if err != nil {
		return err
	}

	var samples []nn.Sample
	if n := cfg.Data.Synthetic; n > 0 {
		samples = dataset.Synthetic(n, cfg.Training.Seed, norm)
	} else {
		samples, err = dataset.LoadMNIST(cfg.Data.Dir, dataset.Test, cfg.Data.TestLimit, norm)
		if err != nil {
			return err
		}
	}
	logger.Debug("evaluating", "model", modelPath, "samples", len(samples), "normalization", norm, "workers", pcfg.NumWorkers)

	res, err := train.Evaluate(ctx, m.Network, samples, pcfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "loss:     %.6f\n", res.Loss)
	fmt.Fprintf(out, "accuracy: %.2f%% (%d/%d)\n", 100*res.Accuracy, res.Correct, res.Samples)
	if confusion {
		printConfusion(out, res.Confusion)
	}
	return nil
}

// printConfusion writes one row per true class, one column per predicted
// class.
func printConfusion(out io.Writer, c [][]int) {
	fmt.Fprint(out, "true\\pred")
	for j := range c {
		fmt.Fprintf(out, " %6d", j)
	}
	fmt.Fprintln(out)
	for i, row := range c {
		fmt.Fprintf(out, "%9d", i)
		for _, v := range row {
			fmt.Fprintf(out, " %6d", v)
		}
		fmt.Fprintln(out)
	}
}
