package websocket

import (
	"context"
	"errors"

	"relay-chat/internal/events"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisBridge ends a user's sessions on every instance that shares the
// Redis server.
type RedisBridge struct {
	subscriber events.Subscriber
	publisher  Publisher
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber events.Subscriber, publisher Publisher, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &RedisBridge{subscriber: subscriber, publisher: publisher, hub: hub, log: log}
}

// Run relays disconnect requests to the local hub until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub, err := b.subscriber.Open(ctx, events.SessionsChannel)
	if err != nil {
		return err
	}
	defer sub.Close()
	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer stop()
	for {
		_, payload, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if uid := string(payload); uid != "" {
			b.hub.DisconnectUser(uid)
		}
	}
}

// DisconnectUser kicks the local sessions of uid and asks the other
// instances to do the same.
func (b *RedisBridge) DisconnectUser(uid string) int {
	n := b.hub.DisconnectUser(uid)
	err := b.publisher.Publish(context.Background(), events.SessionsChannel, []byte(uid))
	if err != nil && !errors.Is(err, context.Canceled) {
		b.log.Logger.Warn("session disconnect not published", zap.String("uid", uid), zap.Error(err))
	}
	return n
}
