// internal/loop/loop.go
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"rasterwarp/internal/config"
	"rasterwarp/internal/domain"
	"rasterwarp/internal/metrics"
)

// Outcome tells the enclosing process what to do after the loop returns.
type Outcome int

const (
	// ContinueSubscription recycles the subscription and re-enters the loop.
	ContinueSubscription Outcome = iota
	// Terminate shuts the daemon down.
	Terminate
)

// workDispatcher is the slice of the dispatcher the loop needs.
type workDispatcher interface {
	Submit(item *domain.WorkItem)
	Drain() []*domain.WorkResult
}

// Loop consumes inbound events, feeds reprojection work into the dispatcher
// and forwards completed results to the publisher. A single goroutine runs
// it; the outstanding count is owned here exclusively. The Loop is built once
// per process, next to the dispatcher, and reused across subscription
// sessions so the count of in-flight items survives a resubscribe.
type Loop struct {
	pub        domain.Publisher
	dispatcher workDispatcher
	shutdown   *atomic.Bool

	targetDir      string
	options        map[string]any
	overviews      []int
	restartTimeout time.Duration
	pubTopic       string

	// outstanding counts items submitted but not yet drained. It must
	// persist across sessions: the dispatcher's completion channel does,
	// and work left in flight by one session drains in the next.
	outstanding int

	logger *slog.Logger
	now    func() time.Time
}

// New wires a loop over the long-lived dispatcher and publisher.
func New(pub domain.Publisher, dispatcher workDispatcher,
	cfg *config.Config, options map[string]any, shutdown *atomic.Bool, logger *slog.Logger) *Loop {
	return &Loop{
		pub:            pub,
		dispatcher:     dispatcher,
		shutdown:       shutdown,
		targetDir:      cfg.TargetDir,
		options:        options,
		overviews:      cfg.Overviews,
		restartTimeout: time.Duration(cfg.RestartTimeout) * time.Minute,
		pubTopic:       cfg.Publisher.Topic,
		logger:         logger.With("component", "warper-loop"),
		now:            time.Now,
	}
}

// Run drives one subscription session until an outcome is reached:
//
//   - Terminate when shutdown was requested and all outstanding work drained,
//     or when the context was cancelled;
//   - ContinueSubscription when the idle-restart timeout elapsed with no
//     outstanding work, or on a subscriber error (resubscribing heals a stale
//     watch).
//
// Completion messages are published in the order workers finish, which may
// differ from submission order.
func (l *Loop) Run(ctx context.Context, sub domain.Subscriber) (Outcome, error) {
	lastEvent := l.now()

	for {
		for _, res := range l.dispatcher.Drain() {
			l.forward(ctx, res)
			l.outstanding--
			metrics.OutstandingItems.Dec()
		}

		if l.outstanding == 0 {
			if l.shutdown.Load() {
				l.logger.Info("shutdown requested and all work drained, stopping")
				return Terminate, nil
			}
			if l.restartTimeout > 0 {
				if idle := l.now().Sub(lastEvent); idle > l.restartTimeout {
					l.logger.Debug("idle timeout reached, recycling subscription",
						"idle_minutes", idle.Minutes())
					return ContinueSubscription, nil
				}
			}
		}

		event, err := sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Terminate, err
			}
			return ContinueSubscription, err
		}
		if event == nil || event.Payload == nil {
			continue
		}

		l.logger.Debug("new message received", "payload", event.Payload)
		lastEvent = l.now()

		if l.shutdown.Load() {
			l.logger.Info("shutdown requested, ignoring new event")
			continue
		}

		item, ok := l.newWorkItem(event.Payload)
		if !ok {
			continue
		}
		l.dispatcher.Submit(item)
		l.outstanding++
		metrics.OutstandingItems.Inc()
	}
}

// forward publishes a completion message for a result with a populated
// output descriptor. Failed items pass through silently; their failure has
// already been logged where it happened.
func (l *Loop) forward(ctx context.Context, res *domain.WorkResult) {
	if res == nil || res.Output == nil {
		return
	}

	payload := make(map[string]any, len(res.Metadata)+1)
	for k, v := range res.Metadata {
		payload[k] = v
	}
	payload["uri"] = res.Output.Path
	payload["uid"] = res.Output.UID

	msg := &domain.Message{Topic: l.pubTopic, UID: res.Output.UID, Payload: payload}
	if err := l.pub.Publish(ctx, msg); err != nil {
		l.logger.Error("failed to publish completion", "uri", res.Output.Path, "error", err)
		return
	}
	l.logger.Info("reprojected file announced",
		"source", res.Metadata["uri"], "uri", res.Output.Path)
}

func (l *Loop) newWorkItem(payload map[string]any) (*domain.WorkItem, bool) {
	uri, ok := payload["uri"].(string)
	if !ok || uri == "" {
		l.logger.Warn("event payload missing uri, skipping", "payload", payload)
		return nil, false
	}

	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		meta[k] = v
	}
	return &domain.WorkItem{
		SourcePath: uri,
		TargetDir:  l.targetDir,
		Options:    l.options,
		Overviews:  l.overviews,
		Metadata:   meta,
	}, true
}
