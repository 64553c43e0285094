// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestDispatcherRunsEveryKeyInOrder checks results line up with the input keys.
func TestDispatcherRunsEveryKeyInOrder(t *testing.T) {
	t.Parallel()

	keys := []string{"20250701LTOB0", "20250702NCLT0", "20250705LGLT0"}
	var mu sync.Mutex
	seen := map[string]int{}
	handle := func(_ context.Context, key string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[key]++
		if key == "20250702NCLT0" {
			return errors.New("game not found")
		}
		return nil
	}

	out, err := New(Config{Concurrency: 2}, zap.NewNop()).Run(context.Background(), keys, handle)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out) != len(keys) {
		t.Fatalf("expected %d results, got %d", len(keys), len(out))
	}
	for i, r := range out {
		if r.GameKey != keys[i] {
			t.Fatalf("result %d is %q, want %q", i, r.GameKey, keys[i])
		}
		if seen[keys[i]] != 1 {
			t.Fatalf("%s handled %d times", keys[i], seen[keys[i]])
		}
	}
	if out[1].Err == nil || out[0].Err != nil || out[2].Err != nil {
		t.Fatalf("unexpected errors: %+v", out)
	}
}

// TestDispatcherBoundsConcurrency ensures no more than Concurrency handlers run at once.
func TestDispatcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	handle := func(context.Context, string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	keys := []string{"a", "b", "c", "d", "e", "f"}

	if _, err := New(Config{Concurrency: 2}, nil).Run(context.Background(), keys, handle); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds 2", peak.Load())
	}
}

// TestDispatcherCanceledContext reports unprocessed keys with the context error.
func TestDispatcherCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}, nil).Run(ctx, []string{"a"}, func(context.Context, string) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestDispatcherEmpty returns no results without starting workers.
func TestDispatcherEmpty(t *testing.T) {
	t.Parallel()

	out, err := New(Config{}, nil).Run(context.Background(), nil, func(context.Context, string) error {
		t.Fatal("handler must not run")
		return nil
	})
	if err != nil || len(out) != 0 {
		t.Fatalf("Run() = %v, %v", out, err)
	}
}
