package redis

import (
	"context"

	"relay-chat/internal/events"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

type pubsubSubscription struct {
	ps *redis.PubSub
}

// Next waits for the next message. ReceiveMessage keeps blocking on the
// socket after ctx ends, so cancellation closes the subscription.
func (s *pubsubSubscription) Next(ctx context.Context) (string, []byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.ps.Close() })
	defer stop()
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return "", nil, err
	}
	return msg.Channel, []byte(msg.Payload), nil
}

func (s *pubsubSubscription) Close() error {
	return s.ps.Close()
}

func (s *Subscriber) Open(ctx context.Context, channels ...string) (events.Subscription, error) {
	return confirm(ctx, s.client.Subscribe(ctx, channels...))
}

func (s *Subscriber) OpenPattern(ctx context.Context, patterns ...string) (events.Subscription, error) {
	return confirm(ctx, s.client.PSubscribe(ctx, patterns...))
}

// confirm waits for the subscribe reply so no message published afterwards
// can be missed.
func confirm(ctx context.Context, ps *redis.PubSub) (events.Subscription, error) {
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &pubsubSubscription{ps: ps}, nil
}
