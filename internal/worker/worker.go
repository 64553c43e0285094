// Package worker runs per-game crawl jobs pulled from a queue.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

const (
	defaultMaxAttempts = 2
	defaultBackoff     = 2 * time.Second
)

// Job is one game to process.
type Job struct {
	GameKey string
}

// Result reports how a job ended. Err is nil on success.
type Result struct {
	GameKey  string
	Attempts int
	Err      error
}

// Queue is the source a Worker drains. Dequeue returns an error once the queue
// is closed and empty, or the context ends.
type Queue interface {
	Dequeue(ctx context.Context) (Job, error)
}

// Handler does the work for one game.
type Handler func(ctx context.Context, gameKey string) error

// Config controls retries. Only crawler.ErrTransport failures are retried.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Worker consumes jobs and executes the handler.
type Worker struct {
	queue   Queue
	handle  Handler
	results chan<- Result
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker that reports every job on results.
func New(queue Queue, handle Handler, results chan<- Result, cfg Config, logger *zap.Logger) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, handle: handle, results: results, cfg: cfg, logger: logger}
}

// Run blocks, consuming jobs until the queue is drained or the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Debug("queue drained", zap.Error(err))
			}
			return
		}
		w.logger.Debug("dequeued job", zap.String("game_key", job.GameKey))
		w.results <- w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) Result {
	res := Result{GameKey: job.GameKey}
	for res.Attempts < w.cfg.MaxAttempts {
		res.Attempts++
		res.Err = w.handle(ctx, job.GameKey)
		if res.Err == nil || !errors.Is(res.Err, crawler.ErrTransport) || res.Attempts == w.cfg.MaxAttempts {
			break
		}
		w.logger.Warn("job failed, retrying",
			zap.String("game_key", job.GameKey),
			zap.Int("attempt", res.Attempts),
			zap.Duration("backoff", w.cfg.Backoff),
			zap.Error(res.Err),
		)
		if !sleep(ctx, w.cfg.Backoff) {
			res.Err = ctx.Err()
			break
		}
	}
	if res.Err != nil {
		w.logger.Warn("job failed", zap.String("game_key", job.GameKey), zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
