// internal/infra/etcd/subscriber.go
package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"rasterwarp/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrSubscriptionClosed is returned when the underlying watch channel has
// been torn down; the caller is expected to build a fresh Subscriber.
var ErrSubscriptionClosed = errors.New("subscription channel closed")

// Subscriber receives inbound file events by watching a key prefix. Every
// put under the prefix is one event whose value is a JSON payload map.
type Subscriber struct {
	prefix  string
	poll    time.Duration
	watch   clientv3.WatchChan
	cancel  context.CancelFunc
	logger  *slog.Logger
	pending []*domain.Event
}

// NewSubscriber opens a watch on the given prefix. The poll interval bounds
// how long Receive waits before reporting a heartbeat tick.
func NewSubscriber(client *clientv3.Client, prefix string, poll time.Duration, logger *slog.Logger) *Subscriber {
	if poll <= 0 {
		poll = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		prefix: prefix,
		poll:   poll,
		watch:  client.Watch(ctx, prefix, clientv3.WithPrefix()),
		cancel: cancel,
		logger: logger.With("component", "subscriber", "prefix", prefix),
	}
}

// Receive returns the next event, or a nil event when nothing arrived within
// the poll interval. A watch response carrying several puts is delivered one
// event per call.
func (s *Subscriber) Receive(ctx context.Context) (*domain.Event, error) {
	if ev := s.pop(); ev != nil {
		return ev, nil
	}

	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case resp, ok := <-s.watch:
		if !ok {
			return nil, ErrSubscriptionClosed
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
		for _, event := range resp.Events {
			if event.Type != clientv3.EventTypePut {
				continue
			}
			var payload map[string]any
			if err := json.Unmarshal(event.Kv.Value, &payload); err != nil {
				s.logger.Warn("discarding malformed event",
					"key", string(event.Kv.Key), "error", err)
				continue
			}
			s.pending = append(s.pending, &domain.Event{Payload: payload})
		}
		if ev := s.pop(); ev != nil {
			return ev, nil
		}
		// Response held nothing usable; report it as a heartbeat.
		return nil, nil
	}
}

func (s *Subscriber) pop() *domain.Event {
	if len(s.pending) == 0 {
		return nil
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev
}

// Close tears down the watch. The Subscriber is not reusable afterwards;
// idle restarts create a fresh one.
func (s *Subscriber) Close() error {
	s.cancel()
	return nil
}
