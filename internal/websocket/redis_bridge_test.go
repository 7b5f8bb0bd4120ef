package websocket

import (
	"context"
	"testing"
	"time"

	"relay-chat/internal/events"
	"relay-chat/internal/redis"
	"relay-chat/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridgeRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBridgeKicksRemoteSessions(t *testing.T) {
	mr, client := newBridgeRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// two instances sharing one Redis server
	local, remote := NewHub(), NewHub()
	go local.Run(ctx)
	go remote.Run(ctx)
	pub, sub := redis.NewPublisher(client), redis.NewSubscriber(client)
	localBridge := NewRedisBridge(sub, pub, local, logger.NewNop())
	remoteBridge := NewRedisBridge(sub, pub, remote, logger.NewNop())
	go func() { _ = remoteBridge.Run(ctx) }()

	kicked := &Client{ID: "c1", UserID: "u1", Send: make(chan []byte, 1), kick: make(chan struct{})}
	remote.Register(kicked)
	eventually(t, "remote registration", func() bool { return remote.GetUserClientCount("u1") == 1 })
	eventually(t, "bridge subscription", func() bool {
		return len(mr.PubSubChannels(events.SessionsChannel)) == 1
	})

	assert.Zero(t, localBridge.DisconnectUser("u1"), "local sessions")
	select {
	case <-kicked.kick:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "remote session was not kicked")
	}
}

func TestRedisBridgeStopsOnCancelWithoutTraffic(t *testing.T) {
	mr, client := newBridgeRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)
	bridge := NewRedisBridge(redis.NewSubscriber(client), redis.NewPublisher(client), hub, logger.NewNop())

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	eventually(t, "bridge subscription", func() bool {
		return len(mr.PubSubChannels(events.SessionsChannel)) == 1
	})

	// nothing is published, so only cancellation can end Run
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run did not return after cancel")
	}
	eventually(t, "channel to be left", func() bool {
		return len(mr.PubSubChannels(events.SessionsChannel)) == 0
	})
}
