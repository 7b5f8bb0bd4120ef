package redis

import (
	"context"
	"encoding/json"

	"relay-chat/internal/events"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes change envelopes. Built on a transaction pipeline the
// publish is queued with the rest of the transaction and its error only
// surfaces from Exec.
type Publisher struct {
	client redis.Cmdable
}

func NewPublisher(client redis.Cmdable) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *Publisher) PublishEnvelope(ctx context.Context, e events.Envelope) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Publish(ctx, events.DocumentChannel(e.AggregateType, e.AggregateID), payload)
}
