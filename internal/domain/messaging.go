package domain

import "context"

// Event is one inbound bus notification. A nil Payload is a poll tick
// (heartbeat) carrying no work.
type Event struct {
	Payload map[string]any
}

// Subscriber delivers inbound events. Receive blocks for at most the
// subscriber's poll interval and returns a nil event when nothing arrived.
type Subscriber interface {
	Receive(ctx context.Context) (*Event, error)
	Close() error
}

// Message is an outbound completion notification on a named topic.
type Message struct {
	Topic   string
	UID     string
	Payload map[string]any
}

// Publisher announces completed work on the bus.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}
