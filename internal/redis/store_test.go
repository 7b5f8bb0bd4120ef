package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/repository"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, opts *goredis.Options) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	if opts == nil {
		opts = &goredis.Options{}
	}
	opts.Addr = mr.Addr()
	c := goredis.NewClient(opts)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	_, c := newTestRedis(t, nil)
	return c
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(newTestClient(t), logger.NewNop())
	t.Cleanup(s.Close)
	return s
}

type snapshots struct {
	ch chan store.Snapshot
}

func newSnapshots() *snapshots {
	return &snapshots{ch: make(chan store.Snapshot, 32)}
}

func (s *snapshots) listen(snap store.Snapshot, err error) {
	if err == nil {
		s.ch <- snap
	}
}

func (s *snapshots) next(t *testing.T) store.Snapshot {
	t.Helper()
	select {
	case snap := <-s.ch:
		return snap
	case <-time.After(3 * time.Second):
		require.FailNow(t, "timed out waiting for snapshot")
		return store.Snapshot{}
	}
}

func (s *snapshots) none(t *testing.T) {
	t.Helper()
	select {
	case snap := <-s.ch:
		assert.Failf(t, "unexpected snapshot", "%s", snap.String())
	case <-time.After(100 * time.Millisecond):
	}
}

// closeWithin fails the test when Close does not return in time.
func closeWithin(t *testing.T, s *Store, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		require.FailNow(t, "Close did not return")
	}
}

func TestStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "chats/k1", map[string]any{"chatName": "crew", "users": []string{"a1", "b1"}}))
	require.NoError(t, s.Update(ctx, "chats/k1", map[string]any{"latestMessageText": "hi", "users/2": "c1"}))

	snap, err := s.Get(ctx, "chats/k1/users")
	require.NoError(t, err)
	assert.Len(t, snap.Children(), 3, "users = %s", snap.String())
	snap, err = s.Get(ctx, "chats/k1/latestMessageText")
	require.NoError(t, err)
	assert.Equal(t, "hi", snap.Value)

	require.NoError(t, s.Remove(ctx, "chats/k1/chatName"))
	snap, err = s.Get(ctx, "chats/k1/chatName")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	require.NoError(t, s.Set(ctx, "chats/k2", map[string]any{"chatName": "two"}))
	all, err := s.Get(ctx, "chats")
	require.NoError(t, err)
	children := all.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "k1", children[0].Key())

	require.NoError(t, s.Remove(ctx, "chats/k2"))
	all, err = s.Get(ctx, "chats")
	require.NoError(t, err)
	assert.Len(t, all.Children(), 1)

	missing, err := s.Get(ctx, "users")
	require.NoError(t, err)
	assert.False(t, missing.Exists())
}

func TestStoreRejectsShallowWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	assert.ErrorIs(t, s.Set(ctx, "chats", map[string]any{"k1": "x"}), relay_errors.ErrInvalidPath)
	_, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidPath)
	assert.ErrorIs(t, s.Set(ctx, "chats/a.b", "x"), relay_errors.ErrInvalidPath)
}

func TestStorePushOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	var keys []string
	for _, text := range []string{"one", "two", "three"} {
		key, err := s.Push(ctx, "messages/k1", map[string]any{"text": text})
		require.NoError(t, err)
		keys = append(keys, key)
	}
	snap, err := s.Get(ctx, "messages/k1")
	require.NoError(t, err)
	children := snap.Children()
	require.Len(t, children, 3)
	for i, child := range children {
		assert.Equal(t, keys[i], child.Key(), "child %d", i)
	}
}

func TestStoreConcurrentWritesToOneDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Push(ctx, "userChats/u1", "chat"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	snap, err := s.Get(ctx, "userChats/u1")
	require.NoError(t, err)
	assert.Len(t, snap.Children(), 8)
}

func TestStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "chats/k1", map[string]any{"chatName": "one"}))

	rec := newSnapshots()
	h, err := s.Subscribe(ctx, "chats/k1/chatName", rec.listen)
	require.NoError(t, err)
	assert.Equal(t, "one", rec.next(t).Value)

	// a write elsewhere in the document does not change the value
	require.NoError(t, s.Update(ctx, "chats/k1", map[string]any{"latestMessageText": "x"}))
	rec.none(t)

	require.NoError(t, s.Set(ctx, "chats/k1/chatName", "two"))
	assert.Equal(t, "two", rec.next(t).Value)

	require.NoError(t, s.Remove(ctx, "chats/k1"))
	assert.False(t, rec.next(t).Exists())

	require.NoError(t, s.Unsubscribe(h))
	assert.ErrorIs(t, s.Unsubscribe(h), relay_errors.ErrNotFound)
	require.NoError(t, s.Set(ctx, "chats/k1/chatName", "three"))
	rec.none(t)
	assert.Zero(t, s.Subscriptions())
}

func TestStoreSubscribeCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := newSnapshots()
	_, err := s.Subscribe(ctx, "users", rec.listen)
	require.NoError(t, err)
	assert.False(t, rec.next(t).Exists())

	require.NoError(t, s.Set(ctx, "users/u1", map[string]any{"firstName": "Ada"}))
	snap := rec.next(t)
	assert.Equal(t, "Ada", snap.Child("u1").Child("firstName").Value, "collection = %s", snap.String())
}

func TestStoreWatchersShareAChannel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "chats/k1", map[string]any{"chatName": "one"}))

	first, second := newSnapshots(), newSnapshots()
	h1, err := s.Subscribe(ctx, "chats/k1/chatName", first.listen)
	require.NoError(t, err)
	_, err = s.Subscribe(ctx, "chats/k1", second.listen)
	require.NoError(t, err)
	first.next(t)
	second.next(t)
	assert.Equal(t, 2, s.Subscriptions())
	assert.Equal(t, 1, s.Channels())

	// dropping one watcher keeps the channel for the other
	require.NoError(t, s.Unsubscribe(h1))
	assert.Equal(t, 1, s.Channels())
	require.NoError(t, s.Set(ctx, "chats/k1/chatName", "two"))
	assert.Equal(t, "two", second.next(t).Child("chatName").Value)
	first.none(t)
}

func TestStoreUnsubscribeLeavesChannelWithoutWrites(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t, nil)
	s := NewStore(client, logger.NewNop())

	rec := newSnapshots()
	h, err := s.Subscribe(ctx, "chats/k1", rec.listen)
	require.NoError(t, err)
	rec.next(t)
	require.NotEmpty(t, mr.PubSubChannels(""))

	require.NoError(t, s.Unsubscribe(h))
	assert.Zero(t, s.Channels())
	assert.Eventually(t, func() bool { return len(mr.PubSubChannels("")) == 0 },
		2*time.Second, 10*time.Millisecond, "redis still has the channel")

	// nothing was ever written, so only Close can wake the watcher
	closeWithin(t, s, 5*time.Second)
	assert.Zero(t, s.Subscriptions())
}

func TestStoreSubscriptionsShareOneConnection(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t, &goredis.Options{PoolSize: 1})
	s := NewStore(client, logger.NewNop())
	t.Cleanup(s.Close)

	handles := make([]store.Handle, 0, 24)
	for i := 0; i < 20; i++ {
		h, err := s.Subscribe(ctx, fmt.Sprintf("users/u%d", i), func(store.Snapshot, error) {})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, p := range []string{"chats", "messages/k1", "userChats/u1", "userChats/u1"} {
		h, err := s.Subscribe(ctx, p, func(store.Snapshot, error) {})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, 24, s.Subscriptions())
	assert.Equal(t, 23, s.Channels())
	// one pooled connection plus the shared Pub/Sub connection
	assert.LessOrEqual(t, mr.CurrentConnectionCount(), 2)

	for _, h := range handles {
		require.NoError(t, s.Unsubscribe(h))
	}
	assert.Zero(t, s.Channels())
}

func TestStoreSubscribeAfterLeavingRejoins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := newSnapshots()
	h, err := s.Subscribe(ctx, "chats/k1", rec.listen)
	require.NoError(t, err)
	rec.next(t)
	require.NoError(t, s.Unsubscribe(h))

	_, err = s.Subscribe(ctx, "chats/k1", rec.listen)
	require.NoError(t, err)
	assert.False(t, rec.next(t).Exists())
	require.NoError(t, s.Set(ctx, "chats/k1", map[string]any{"chatName": "back"}))
	assert.Equal(t, "back", rec.next(t).Child("chatName").Value)
}

func TestRepositoriesOverRedis(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	chats := repository.NewChatRepository(s)
	index := repository.NewChatIndexRepository(s)

	d := chat.Draft{Users: []string{"a1", "b1"}}.Normalize("a1")
	key, err := chats.Create(ctx, d.Record("a1", time.Now()))
	require.NoError(t, err)
	_, err = index.Add(ctx, "a1", key)
	require.NoError(t, err)

	c, err := chats.GetByID(ctx, key)
	require.NoError(t, err)
	assert.True(t, c.SameMembers([]string{"a1", "b1"}), "chat = %+v", c)

	list, err := chats.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	entries, err := index.Entries(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].ChatID)
}

func TestStoreClose(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestClient(t), logger.NewNop())
	rec := newSnapshots()
	_, err := s.Subscribe(ctx, "chats/k1", rec.listen)
	require.NoError(t, err)
	rec.next(t)

	closeWithin(t, s, 5*time.Second)
	assert.Zero(t, s.Subscriptions())
	assert.Zero(t, s.Channels())
	assert.NotPanics(t, s.Close)

	assert.ErrorIs(t, s.Set(ctx, "chats/k1/x", "y"), relay_errors.ErrStoreClosed)
	_, err = s.Subscribe(ctx, "chats/k1", rec.listen)
	assert.ErrorIs(t, err, relay_errors.ErrStoreClosed)
}
