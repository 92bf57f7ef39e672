package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/optim"
)

// EpochStats summarizes one pass over the training samples.
type EpochStats struct {
	Epoch    int     // 1-based
	Loss     float64 // Mean per-sample loss, measured before each update
	Accuracy float64 // Fraction of samples whose argmax matched the target
	Samples  int
	Steps    int // Parameter updates applied during the epoch
	Duration time.Duration
}

// EpochHook is called after every completed epoch. Returning an error stops
// the run.
type EpochHook func(ctx context.Context, stats EpochStats) error

// Trainer runs the training loop for one network.
//
// A Trainer drives its network from a single goroutine; it must not be
// shared, and the network must not be used elsewhere while Run is active.
type Trainer struct {
	net    *nn.Network
	cfg    Config
	opt    optim.Optimizer
	logger *slog.Logger
	hooks  []EpochHook
	rng    *rand.Rand

	epoch int   // Completed epochs
	steps int64 // Completed parameter updates
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithOptimizer replaces the default plain SGD optimizer.
func WithOptimizer(opt optim.Optimizer) Option {
	return func(t *Trainer) { t.opt = opt }
}

// WithLogger sets the logger for progress records.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithEpochHook adds a callback run after every epoch, in order of
// registration.
func WithEpochHook(h EpochHook) Option {
	return func(t *Trainer) { t.hooks = append(t.hooks, h) }
}

// WithResume continues a run that already completed epoch epochs and steps
// updates. Run trains the remaining Config.Epochs - epoch epochs.
func WithResume(epoch int, steps int64) Option {
	return func(t *Trainer) {
		t.epoch = epoch
		t.steps = steps
	}
}

// New creates a Trainer for net.
func New(net *nn.Network, cfg Config, opts ...Option) (*Trainer, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", nn.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{net: net, cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if t.opt == nil {
		t.opt = optim.NewSGD(optim.SGDConfig{LR: cfg.LearningRate})
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.epoch < 0 || t.epoch > cfg.Epochs {
		return nil, fmt.Errorf("%w: resume epoch %d outside [0, %d]", nn.ErrInvalidConfiguration, t.epoch, cfg.Epochs)
	}
	t.rng = nn.NewRand(cfg.Seed)
	return t, nil
}

// Network returns the network being trained.
func (t *Trainer) Network() *nn.Network { return t.net }

// Optimizer returns the optimizer applying the updates.
func (t *Trainer) Optimizer() optim.Optimizer { return t.opt }

// Epoch returns the number of completed epochs.
func (t *Trainer) Epoch() int { return t.epoch }

// Steps returns the number of parameter updates applied so far.
func (t *Trainer) Steps() int64 { return t.steps }

// Run trains until Config.Epochs epochs have completed and returns the
// statistics of the epochs run by this call.
//
// ctx is checked between batches; on cancellation the partial epoch is
// discarded from the statistics and ctx.Err() is returned. A non-finite
// loss or activation aborts the run with an error matching
// nn.ErrNumericInstability.
func (t *Trainer) Run(ctx context.Context, samples []nn.Sample) ([]EpochStats, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no training samples", nn.ErrInvalidConfiguration)
	}

	t.logger.Info("training started",
		"samples", len(samples),
		"epochs", t.cfg.Epochs,
		"start_epoch", t.epoch+1,
		"batch_size", t.cfg.BatchSize,
		"optimizer", t.opt.Name(),
		"learning_rate", t.opt.GetLR(),
		"parameters", t.net.NumParameters(),
	)

	var history []EpochStats
	for t.epoch < t.cfg.Epochs {
		stats, err := t.runEpoch(ctx, samples, t.epoch+1)
		if err != nil {
			return history, err
		}
		t.epoch++
		history = append(history, stats)

		t.logger.Info("epoch complete",
			"epoch", stats.Epoch,
			"loss", stats.Loss,
			"accuracy", stats.Accuracy,
			"samples", stats.Samples,
			"duration", stats.Duration,
		)
		for _, h := range t.hooks {
			if err := h(ctx, stats); err != nil {
				return history, fmt.Errorf("epoch %d hook: %w", stats.Epoch, err)
			}
		}
	}
	return history, nil
}

func (t *Trainer) runEpoch(ctx context.Context, samples []nn.Sample, epoch int) (EpochStats, error) {
	start := time.Now()

	order := lo.Range(len(samples))
	if t.cfg.Shuffle {
		t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	stats := EpochStats{Epoch: epoch}
	var lossSum float64
	var correct int
	for bi, idx := range lo.Chunk(order, t.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return EpochStats{}, err
		}

		batch := lo.Map(idx, func(i int, _ int) nn.Sample { return samples[i] })
		res, err := t.net.Step(batch, t.opt)
		if err != nil {
			if errors.Is(err, nn.ErrNumericInstability) {
				t.logger.Error("aborting training", "epoch", epoch, "batch", bi, "error", err)
			}
			return EpochStats{}, fmt.Errorf("epoch %d batch %d: %w", epoch, bi, err)
		}
		t.steps++
		stats.Steps++

		lossSum += res.Loss * float64(res.Samples)
		correct += res.Correct
		stats.Samples += res.Samples

		t.logger.Debug("batch", "epoch", epoch, "batch", bi, "loss", res.Loss)
	}

	stats.Loss = lossSum / float64(stats.Samples)
	stats.Accuracy = float64(correct) / float64(stats.Samples)
	stats.Duration = time.Since(start)
	return stats, nil
}
