package train

import (
	"context"
	"fmt"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/parallel"
	"github.com/densenet-ml/densenet/internal/tensor"
)

// Result is the outcome of evaluating a network on a sample set.
type Result struct {
	Loss     float64 // Mean per-sample loss
	Accuracy float64
	Correct  int
	Samples  int

	// Confusion[t][p] counts samples of true class t predicted as p.
	Confusion [][]int
}

// Evaluate measures loss and accuracy of net on samples without changing
// its parameters.
//
// Work is split across cfg.NumWorkers goroutines, each predicting with its
// own clone of net; net itself is only read.
func Evaluate(ctx context.Context, net *nn.Network, samples []nn.Sample, cfg parallel.Config) (Result, error) {
	if len(samples) == 0 {
		return Result{}, fmt.Errorf("%w: no evaluation samples", nn.ErrInvalidConfiguration)
	}

	k := net.OutputWidth()
	partials := make([]Result, parallel.NumChunks(len(samples), cfg))
	clones := make([]*nn.Network, len(partials))
	for i := range partials {
		clones[i] = net.Clone()
		partials[i].Confusion = newConfusion(k)
	}

	err := parallel.ForChunks(ctx, len(samples), cfg, func(ctx context.Context, w, start, end int) error {
		local, p := clones[w], &partials[w]
		for i := start; i < end; i++ {
			if (i-start)%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			s := samples[i]
			out, err := local.Predict(s.Input)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			loss, err := nn.ComputeLoss(local.Loss(), out, s.Target)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}

			want, got := tensor.Argmax(s.Target), tensor.Argmax(out)
			p.Loss += loss
			p.Samples++
			if want == got {
				p.Correct++
			}
			if want >= 0 && want < k {
				p.Confusion[want][got]++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	total := Result{Confusion: newConfusion(k)}
	for _, p := range partials {
		total.Loss += p.Loss
		total.Correct += p.Correct
		total.Samples += p.Samples
		for i := range p.Confusion {
			for j, c := range p.Confusion[i] {
				total.Confusion[i][j] += c
			}
		}
	}
	total.Loss /= float64(total.Samples)
	total.Accuracy = float64(total.Correct) / float64(total.Samples)
	return total, nil
}

func newConfusion(k int) [][]int {
	m := make([][]int, k)
	for i := range m {
		m[i] = make([]int, k)
	}
	return m
}
