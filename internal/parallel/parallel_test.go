package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if cfg.Enabled != (cfg.NumWorkers > 1) {
		t.Errorf("Enabled = %v with %d workers", cfg.Enabled, cfg.NumWorkers)
	}
}

func TestForChunks_CoversRange(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}
	n := 95

	seen := make([]int32, n)
	var workers int64
	err := ForChunks(context.Background(), n, cfg, func(_ context.Context, _, start, end int) error {
		atomic.AddInt64(&workers, 1)
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForChunks: %v", err)
	}

	for i, c := range seen {
		if c != 1 {
			t.Errorf("index %d visited %d times", i, c)
		}
	}
	if int(workers) != NumChunks(n, cfg) {
		t.Errorf("ran %d chunks, NumChunks = %d", workers, NumChunks(n, cfg))
	}
	if workers != 3 {
		t.Errorf("expected 3 chunks, got %d", workers)
	}
}

func TestForChunks_SmallInputRunsInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}

	calls := 0
	err := ForChunks(context.Background(), 10, cfg, func(_ context.Context, worker, start, end int) error {
		calls++
		if worker != 0 || start != 0 || end != 10 {
			t.Errorf("got chunk worker=%d [%d,%d)", worker, start, end)
		}
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestForChunks_Error(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	boom := errors.New("boom")

	err := ForChunks(context.Background(), 40, cfg, func(ctx context.Context, worker, _, _ int) error {
		if worker == 2 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestForChunks_Empty(t *testing.T) {
	called := false
	err := ForChunks(context.Background(), 0, DefaultConfig(), func(context.Context, int, int, int) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("f called for empty range")
	}
}
