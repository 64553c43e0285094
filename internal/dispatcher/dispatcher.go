// Package dispatcher fans a batch of game keys out to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/queue/memory"
	"github.com/JakeFAU/kbo-game-crawler/internal/worker"
)

const defaultConcurrency = 2

// Config sizes the pool and the per-job retry policy.
type Config struct {
	Concurrency int
	Worker      worker.Config
}

// Dispatcher runs one handler per game key with bounded concurrency.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{cfg: cfg, logger: logger}
}

// Run processes every key and blocks until all workers finish. Results come back
// in the order of keys; keys left unprocessed when ctx ends are reported with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, keys []string, handle worker.Handler) ([]worker.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch canceled: %w", err)
	}
	q := memory.NewQueue[worker.Job](len(keys))
	for _, key := range keys {
		if err := q.Enqueue(ctx, worker.Job{GameKey: key}); err != nil {
			return nil, fmt.Errorf("queue enqueue: %w", err)
		}
	}
	q.Close()

	n := min(d.cfg.Concurrency, len(keys))
	results := make(chan worker.Result, len(keys))
	var wg sync.WaitGroup
	for i := range n {
		w := worker.New(q, handle, results, d.cfg.Worker, d.logger.With(zap.Int("worker", i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()
	close(results)

	byKey := make(map[string]worker.Result, len(keys))
	for r := range results {
		byKey[r.GameKey] = r
	}
	out := make([]worker.Result, len(keys))
	for i, key := range keys {
		r, ok := byKey[key]
		if !ok {
			r = worker.Result{GameKey: key, Err: ctx.Err()}
		}
		out[i] = r
	}
	return out, nil
}

