package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/densenet-ml/densenet/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MODEL",
		Short: "Print the header of a .dnet model or checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := serialization.LoadFile(args[0])
			if err != nil {
				return err
			}
			printModel(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func printModel(out io.Writer, m *serialization.Model) {
	h := m.Header
	fmt.Fprintf(out, "model id:   %s\n", h.ModelID)
	fmt.Fprintf(out, "format:     v%d\n", h.FormatVersion)
	fmt.Fprintf(out, "created:    %s\n", h.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "loss:       %s\n", h.Loss)
	fmt.Fprintf(out, "parameters: %d\n", h.ParamCount)

	fmt.Fprintln(out, "layers:")
	for i, l := range h.Layers {
		fmt.Fprintf(out, "  %d: %d -> %d %s\n", i, l.InputWidth, l.OutputWidth, l.Activation)
	}

	if len(h.Metadata) > 0 {
		fmt.Fprintln(out, "metadata:")
		keys := lo.Keys(h.Metadata)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, h.Metadata[k])
		}
	}

	if ck := h.Checkpoint; ck != nil {
		fmt.Fprintln(out, "checkpoint:")
		fmt.Fprintf(out, "  epoch:     %d\n", ck.Epoch)
		fmt.Fprintf(out, "  step:      %d\n", ck.Step)
		fmt.Fprintf(out, "  loss:      %.6f\n", ck.Loss)
		fmt.Fprintf(out, "  accuracy:  %.4f\n", ck.Accuracy)
		fmt.Fprintf(out, "  optimizer: %s (lr %g)\n", ck.OptimizerType, ck.LearningRate)
		fmt.Fprintf(out, "  state:     %d buffers\n", len(ck.OptimizerState))
	}
}
