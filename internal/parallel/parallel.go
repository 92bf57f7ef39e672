// Package parallel provides data-parallel execution helpers for evaluation
// and dataset preparation.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on the number of physical cores.
func DefaultConfig() Config {
	n := Workers()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Workers returns the number of physical cores, falling back to the logical
// CPU count when cpuid cannot tell.
func Workers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// chunks splits [0, n) into at most cfg.NumWorkers ranges of at least
// cfg.MinChunkSize items. A disabled config yields a single range.
func chunks(n int, cfg Config) [][2]int {
	if n <= 0 {
		return nil
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		return [][2]int{{0, n}}
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	out := make([][2]int, 0, (n+chunkSize-1)/chunkSize)
	for start := 0; start < n; start += chunkSize {
		out = append(out, [2]int{start, min(start+chunkSize, n)})
	}
	return out
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ranges := chunks(n, cfg)
	if len(ranges) <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for _, r := range ranges {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(r[0], r[1])
	}
	wg.Wait()
}

// ForChunks splits [0, n) into contiguous ranges and runs f once per range.
//
// worker is the range's index in [0, NumChunks(n, cfg)), so callers can give
// each range its own scratch state. The first error cancels ctx for the
// remaining ranges and is returned.
func ForChunks(ctx context.Context, n int, cfg Config, f func(ctx context.Context, worker, start, end int) error) error {
	ranges := chunks(n, cfg)
	if len(ranges) == 1 {
		return f(ctx, 0, 0, n)
	}

	g, ctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		g.Go(func() error {
			return f(ctx, w, r[0], r[1])
		})
	}
	return g.Wait()
}

// NumChunks returns how many ranges ForChunks will use for n items.
func NumChunks(n int, cfg Config) int {
	return len(chunks(n, cfg))
}
