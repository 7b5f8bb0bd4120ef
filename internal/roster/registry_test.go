package roster

import (
	"context"
	"errors"
	"testing"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRefcounting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t.Cleanup(st.Close)
	r := NewRegistry(st)
	noop := func(store.Snapshot, error) {}

	opened, err := r.Acquire(ctx, "users/u1", noop)
	require.NoError(t, err)
	assert.True(t, opened)
	opened, err = r.Acquire(ctx, "users/u1/", noop)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, 1, st.SubscriptionsAt("users/u1"))
	assert.Equal(t, 2, r.Refs("users/u1"))

	closed, err := r.Release("users/u1")
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, 1, st.SubscriptionsAt("users/u1"), "subscription closed while still referenced")

	closed, err = r.Release("users/u1")
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Zero(t, st.Subscriptions())
	assert.Zero(t, r.Open())

	closed, err = r.Release("users/u1")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestRegistryCloseAll(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t.Cleanup(st.Close)
	r := NewRegistry(st)
	noop := func(store.Snapshot, error) {}

	for _, p := range []string{"users/u1", "users/u1", "chats/k1", "messages/k1"} {
		_, err := r.Acquire(ctx, p, noop)
		require.NoError(t, err, "Acquire %s", p)
	}
	require.NoError(t, r.CloseAll())
	assert.Zero(t, st.Subscriptions())

	_, err := r.Acquire(ctx, "users/u2", noop)
	assert.ErrorIs(t, err, relay_errors.ErrStoreClosed)
}

func TestRegistryAcquireFailure(t *testing.T) {
	st := store.NewMemoryStore()
	t.Cleanup(st.Close)
	boom := errors.New("permission denied")
	st.SetFault(func(op store.Op, path string) error {
		if op == store.OpSubscribe {
			return boom
		}
		return nil
	})
	r := NewRegistry(st)
	_, err := r.Acquire(context.Background(), "users/u1", func(store.Snapshot, error) {})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, r.Open(), "failed acquire left a registration")
}
