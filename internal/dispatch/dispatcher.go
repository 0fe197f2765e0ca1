// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"rasterwarp/internal/domain"
)

// Executor runs one WorkItem to completion and always yields a WorkResult.
type Executor interface {
	Execute(ctx context.Context, item *domain.WorkItem) *domain.WorkResult
}

// Dispatcher is a fixed-size pool of workers executing WorkItems. Submissions
// queue in a bounded channel; completed results come back through a typed
// completion channel collected with Drain.
type Dispatcher struct {
	executor Executor
	jobs     chan *domain.WorkItem
	results  chan *domain.WorkResult
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a dispatcher with the given pool size and submission queue
// capacity, and starts its workers.
func New(executor Executor, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		executor: executor,
		jobs:     make(chan *domain.WorkItem, queueSize),
		// Sized so a worker can always hand off its result without
		// waiting on the control goroutine's next Drain.
		results: make(chan *domain.WorkResult, queueSize+workers),
		logger:  logger.With("component", "dispatcher"),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for item := range d.jobs {
		d.results <- d.execute(id, item)
	}
}

// execute shields the pool from a panicking executor: the panic is logged and
// a failure result is emitted so the submission still drains.
func (d *Dispatcher) execute(id int, item *domain.WorkItem) (res *domain.WorkResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panicked",
				"worker", id,
				"source", item.SourcePath,
				"panic", r,
				"stack", string(debug.Stack()))
			res = &domain.WorkResult{Metadata: item.Metadata}
		}
	}()
	// Running tool invocations are never force-killed; cancellation is
	// signal-driven and stops new submissions only.
	return d.executor.Execute(context.Background(), item)
}

// Submit enqueues the item for asynchronous execution. It returns immediately
// while queue capacity remains and blocks once the queue is full.
func (d *Dispatcher) Submit(item *domain.WorkItem) {
	d.jobs <- item
}

// Drain returns every result that has become available without waiting for
// more. Draining again without new completions yields an empty slice.
func (d *Dispatcher) Drain() []*domain.WorkResult {
	var out []*domain.WorkResult
	for {
		select {
		case res, ok := <-d.results:
			if !ok {
				return out
			}
			out = append(out, res)
		default:
			return out
		}
	}
}

// Close stops accepting submissions and waits for in-flight work to finish.
// Remaining results stay collectable through Drain.
func (d *Dispatcher) Close() {
	close(d.jobs)
	d.wg.Wait()
	close(d.results)
}
