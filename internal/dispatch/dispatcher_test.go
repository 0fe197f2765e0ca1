package dispatch_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rasterwarp/internal/dispatch"
	"rasterwarp/internal/domain"
)

// countingExecutor tracks the highest number of concurrently running
// executions and blocks each one until release is closed.
type countingExecutor struct {
	mu      sync.Mutex
	running int
	peak    int
	release chan struct{}
}

func (e *countingExecutor) Execute(_ context.Context, item *domain.WorkItem) *domain.WorkResult {
	e.mu.Lock()
	e.running++
	if e.running > e.peak {
		e.peak = e.running
	}
	e.mu.Unlock()

	if e.release != nil {
		<-e.release
	}

	e.mu.Lock()
	e.running--
	e.mu.Unlock()

	return &domain.WorkResult{
		Metadata: item.Metadata,
		Output:   &domain.Output{Path: item.SourcePath, UID: "uid"},
	}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func item(src string) *domain.WorkItem {
	return &domain.WorkItem{SourcePath: src, Metadata: map[string]any{"uri": src}}
}

// drainAll polls Drain until n results arrived or the deadline passes.
func drainAll(t *testing.T, d *dispatch.Dispatcher, n int) []*domain.WorkResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var out []*domain.WorkResult
	for len(out) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out draining, got %d of %d results", len(out), n)
		}
		out = append(out, d.Drain()...)
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestAtMostPoolSizeExecutionsRunConcurrently(t *testing.T) {
	exec := &countingExecutor{release: make(chan struct{})}
	d := dispatch.New(exec, 2, 16, discard())
	defer d.Close()

	for i := 0; i < 6; i++ {
		d.Submit(item("/in/a.tif"))
	}

	// Give the pool time to pick up as much as it can.
	time.Sleep(50 * time.Millisecond)
	close(exec.release)

	drainAll(t, d, 6)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if exec.peak > 2 {
		t.Errorf("peak concurrency %d exceeds pool size 2", exec.peak)
	}
	if exec.peak < 2 {
		t.Errorf("expected both workers busy, peak was %d", exec.peak)
	}
}

func TestSubmissionsBeyondPoolSizeQueueAndComplete(t *testing.T) {
	exec := &countingExecutor{}
	d := dispatch.New(exec, 2, 16, discard())
	defer d.Close()

	d.Submit(item("/in/one.tif"))
	d.Submit(item("/in/two.tif"))
	d.Submit(item("/in/three.tif"))

	results := drainAll(t, d, 3)

	seen := map[string]bool{}
	for _, res := range results {
		seen[res.Output.Path] = true
	}
	for _, want := range []string{"/in/one.tif", "/in/two.tif", "/in/three.tif"} {
		if !seen[want] {
			t.Errorf("missing result for %s", want)
		}
	}
}

func TestDrainIsNonBlockingAndIdempotent(t *testing.T) {
	exec := &countingExecutor{}
	d := dispatch.New(exec, 1, 16, discard())
	defer d.Close()

	if got := d.Drain(); len(got) != 0 {
		t.Fatalf("drain on idle dispatcher returned %d results", len(got))
	}

	d.Submit(item("/in/a.tif"))
	drainAll(t, d, 1)

	if got := d.Drain(); len(got) != 0 {
		t.Errorf("second drain without new completions returned %d results", len(got))
	}
}

// panicExecutor always panics; the pool must absorb it and still drain.
type panicExecutor struct{}

func (panicExecutor) Execute(context.Context, *domain.WorkItem) *domain.WorkResult {
	panic("executor exploded")
}

func TestWorkerPanicStillProducesDrainableResult(t *testing.T) {
	d := dispatch.New(panicExecutor{}, 1, 4, discard())
	defer d.Close()

	d.Submit(item("/in/a.tif"))
	results := drainAll(t, d, 1)

	if results[0].Output != nil {
		t.Errorf("panicked execution must not carry an output descriptor")
	}
	if results[0].Metadata["uri"] != "/in/a.tif" {
		t.Errorf("panicked execution lost its metadata: %v", results[0].Metadata)
	}
}

func TestCloseWaitsForInFlightWork(t *testing.T) {
	exec := &countingExecutor{}
	d := dispatch.New(exec, 2, 4, discard())

	for i := 0; i < 4; i++ {
		d.Submit(item("/in/a.tif"))
	}
	d.Close()

	if got := len(d.Drain()); got != 4 {
		t.Errorf("expected all 4 results after Close, got %d", got)
	}
}
