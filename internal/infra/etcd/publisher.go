// internal/infra/etcd/publisher.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"rasterwarp/internal/domain"
	"rasterwarp/internal/metrics"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher announces completed work by writing one JSON message per
// completion under the topic prefix.
type Publisher struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPublisher creates a publisher rooted at the given bus prefix.
func NewPublisher(client *clientv3.Client, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "publisher"),
		tracer: otel.Tracer("rasterwarp-publisher"),
	}
}

// Publish writes the message payload to <prefix>/<topic>/<uid>.
func (p *Publisher) Publish(ctx context.Context, msg *domain.Message) error {
	ctx, span := p.tracer.Start(ctx, "publisher.Publish",
		trace.WithAttributes(
			attribute.String("message.topic", msg.Topic),
			attribute.String("message.uid", msg.UID),
		))
	defer span.End()

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	key := path.Join(p.prefix, msg.Topic, msg.UID)
	if _, err := p.client.Put(ctx, key, string(data)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put message")
		return fmt.Errorf("failed to publish message to %s: %w", key, err)
	}

	metrics.MessagesPublishedTotal.Inc()
	p.logger.Debug("published message", "key", key)
	return nil
}
