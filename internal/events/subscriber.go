package events

import "context"

// Subscription is an open Pub/Sub subscription.
type Subscription interface {
	// Next blocks for the next message.
	Next(ctx context.Context) (channel string, payload []byte, err error)
	Close() error
}

type Subscriber interface {
	// Open subscribes to exact channel names and returns once the server
	// confirmed the subscription.
	Open(ctx context.Context, channels ...string) (Subscription, error)
	// OpenPattern is Open for glob patterns.
	OpenPattern(ctx context.Context, patterns ...string) (Subscription, error)
}
