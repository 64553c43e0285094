package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

type sliceQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func (q *sliceQueue) Dequeue(ctx context.Context) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, errors.New("empty")
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

type countingHandler struct {
	mu       sync.Mutex
	attempts map[string]int
	fails    int
	err      error
}

func (h *countingHandler) handle(_ context.Context, gameKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attempts == nil {
		h.attempts = map[string]int{}
	}
	h.attempts[gameKey]++
	if h.attempts[gameKey] <= h.fails {
		return h.err
	}
	return nil
}

func runWorker(t *testing.T, q Queue, h Handler, cfg Config) []Result {
	t.Helper()
	results := make(chan Result, 10)
	New(q, h, results, cfg, nil).Run(context.Background())
	close(results)
	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out
}

func TestWorkerProcessesEveryJob(t *testing.T) {
	t.Parallel()
	q := &sliceQueue{jobs: []Job{{GameKey: "a"}, {GameKey: "b"}}}
	h := &countingHandler{}

	out := runWorker(t, q, h.handle, Config{Backoff: time.Millisecond})

	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	for _, r := range out {
		if r.Err != nil || r.Attempts != 1 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

func TestWorkerRetriesTransportErrors(t *testing.T) {
	t.Parallel()
	q := &sliceQueue{jobs: []Job{{GameKey: "a"}}}
	h := &countingHandler{fails: 2, err: crawler.TransportError("navigate", errors.New("reset"))}

	out := runWorker(t, q, h.handle, Config{MaxAttempts: 3, Backoff: time.Millisecond})

	if len(out) != 1 || out[0].Err != nil || out[0].Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", out)
	}
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	q := &sliceQueue{jobs: []Job{{GameKey: "a"}}}
	h := &countingHandler{fails: 5, err: crawler.TransportError("navigate", errors.New("reset"))}

	out := runWorker(t, q, h.handle, Config{MaxAttempts: 2, Backoff: time.Millisecond})

	if len(out) != 1 || !errors.Is(out[0].Err, crawler.ErrTransport) || out[0].Attempts != 2 {
		t.Fatalf("expected transport failure after 2 attempts, got %+v", out)
	}
}

func TestWorkerDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()
	q := &sliceQueue{jobs: []Job{{GameKey: "a"}}}
	h := &countingHandler{fails: 5, err: errors.New("game not found")}

	out := runWorker(t, q, h.handle, Config{MaxAttempts: 3, Backoff: time.Millisecond})

	if len(out) != 1 || out[0].Attempts != 1 || out[0].Err == nil {
		t.Fatalf("expected a single failed attempt, got %+v", out)
	}
}

func TestWorkerStopsOnCanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := make(chan Result, 1)
	q := &sliceQueue{jobs: []Job{{GameKey: "a"}}}

	New(q, (&countingHandler{}).handle, results, Config{}, nil).Run(ctx)

	if len(results) != 0 {
		t.Fatalf("expected no results after cancel, got %d", len(results))
	}
}
