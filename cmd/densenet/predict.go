package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/densenet-ml/densenet/internal/dataset"
	"github.com/densenet-ml/densenet/internal/inference"
	"github.com/densenet-ml/densenet/internal/serialization"
)

type predictFlags struct {
	raw   bool
	probs bool
}

func newPredictCmd() *cobra.Command {
	var f predictFlags

	cmd := &cobra.Command{
		Use:   "predict MODEL [INPUT]",
		Short: "Classify one input vector read from a file or stdin",
		Long: `predict reads whitespace-separated numbers, one per input unit, from INPUT
or from stdin when INPUT is "-" or omitted.

Values are taken as already normalized unless --raw is set, in which case
they are 0-255 pixel intensities and are normalized the way the model was
trained.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				//nolint:gosec // G304: input path comes from the command line
				file, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer file.Close()
				in = file
			}
			return runPredict(cmd.OutOrStdout(), args[0], in, f)
		},
	}

	cmd.Flags().BoolVar(&f.raw, "raw", false, "input values are 0-255 pixel intensities")
	cmd.Flags().BoolVar(&f.probs, "probs", false, "print the full output distribution")
	return cmd
}

func runPredict(out io.Writer, modelPath string, in io.Reader, f predictFlags) error {
	m, err := serialization.LoadFile(modelPath)
	if err != nil {
		return err
	}

	recorded := m.Header.Metadata[serialization.MetadataNormalization]
	var opts []inference.Option
	if recorded != "" {
		opts = append(opts, inference.WithInputRange(0, 1))
	}
	p, err := inference.FromModel(m, opts...)
	if err != nil {
		return err
	}

	values, err := readValues(in)
	if err != nil {
		return err
	}

	input, err := prepareInput(values, recorded, f.raw)
	if err != nil {
		return err
	}

	class, prob, err := p.Classify(input)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "class %d (p=%.4f)\n", class, prob)

	if f.probs {
		dist, err := p.Predict(input)
		if err != nil {
			return err
		}
		for i, v := range dist {
			fmt.Fprintf(out, "%d\t%.6f\n", i, v)
		}
	}
	return nil
}

// prepareInput applies the model's recorded normalization. Raw values are
// normalized from pixel intensities; normalized values are only binarized
// when the model was trained on binarized pixels.
func prepareInput(values []float64, recorded string, raw bool) ([]float64, error) {
	norm, err := dataset.ParseNormalization(recorded)
	if err != nil {
		return nil, err
	}

	if raw {
		pixels := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 || v != float64(int(v)) {
				return nil, fmt.Errorf("%w: raw value %d is %v, want an integer in [0, 255]", inference.ErrInputOutOfRange, i, v)
			}
			pixels[i] = byte(v)
		}
		return norm.Normalize(pixels), nil
	}

	if norm == dataset.Binarized {
		return dataset.Binarize(values), nil
	}
	return values, nil
}

func readValues(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var values []float64
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("input value %d: %w", len(values), err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return values, nil
}
