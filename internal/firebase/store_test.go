package firebase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDatabase mimics the Realtime Database: lists come back as arrays.
type fakeDatabase struct {
	mu     sync.Mutex
	root   any
	pushes int
	fail   error
}

func (f *fakeDatabase) Get(ctx context.Context, path string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return asArrays(store.Clone(store.GetIn(f.root, store.Split(path)))), nil
}

func (f *fakeDatabase) Set(ctx context.Context, path string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.root = store.SetIn(f.root, store.Split(path), store.Clone(value))
	return nil
}

func (f *fakeDatabase) Update(ctx context.Context, path string, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.root = store.SetIn(f.root, store.Split(store.Join(path, k)), store.Clone(v))
	}
	return nil
}

func (f *fakeDatabase) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.root = store.SetIn(f.root, store.Split(path), nil)
	return nil
}

func (f *fakeDatabase) Push(ctx context.Context, path string, value any) (string, error) {
	f.mu.Lock()
	f.pushes++
	key := fmt.Sprintf("-N%04d", f.pushes)
	f.mu.Unlock()
	return key, f.Set(ctx, store.Join(path, key), value)
}

func (f *fakeDatabase) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func asArrays(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	arr := make([]any, len(m))
	for k, child := range m {
		var i int
		if _, err := fmt.Sscanf(k, "%d", &i); err != nil || i < 0 || i >= len(m) || fmt.Sprint(i) != k {
			arr = nil
			break
		}
		arr[i] = asArrays(child)
	}
	if arr != nil {
		return arr
	}
	for k, child := range m {
		m[k] = asArrays(child)
	}
	return m
}

type recorder struct {
	mu    sync.Mutex
	snaps []store.Snapshot
	errs  int
}

func (r *recorder) listen(snap store.Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs++
		return
	}
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps), r.errs
}

func (r *recorder) last() store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func newTestStore(t *testing.T) (*Store, *fakeDatabase) {
	t.Helper()
	db := &fakeDatabase{}
	s := NewStore(db, 5*time.Millisecond, logger.NewNop())
	t.Cleanup(s.Close)
	return s, db
}

func TestStoreNormalizesArrays(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "chats/k1", map[string]any{"users": []string{"a1", "b1"}}))
	snap, err := s.Get(ctx, "chats/k1/users")
	require.NoError(t, err)
	children := snap.Children()
	require.Len(t, children, 2, "users = %s", snap.String())
	assert.Equal(t, "0", children[0].Key())
	assert.Equal(t, "b1", children[1].Value)
}

func TestStoreWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	key, err := s.Push(ctx, "messages/k1", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, key)
	require.NoError(t, s.Update(ctx, "messages/k1/"+key, map[string]any{"text": "edited", "extra/deep": true}))

	snap, err := s.Get(ctx, "messages/k1/"+key)
	require.NoError(t, err)
	assert.Equal(t, "edited", snap.Child("text").Value)
	assert.Equal(t, true, snap.Child("extra").Child("deep").Value)

	require.NoError(t, s.Set(ctx, "messages/k1/"+key+"/text", nil))
	require.NoError(t, s.Remove(ctx, "messages/k1/"+key+"/extra"))
	snap, err = s.Get(ctx, "messages/k1")
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "messages = %s", snap.String())

	assert.ErrorIs(t, s.Set(ctx, "bad/pa.th", 1), relay_errors.ErrInvalidPath)
}

func TestStorePollingSubscription(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	require.NoError(t, s.Set(ctx, "users/u1/firstName", "Ada"))

	rec := &recorder{}
	h, err := s.Subscribe(ctx, "users/u1", rec.listen)
	require.NoError(t, err)
	eventually(t, func() bool { n, _ := rec.count(); return n == 1 })

	// unchanged polls deliver nothing
	time.Sleep(30 * time.Millisecond)
	n, _ := rec.count()
	assert.Equal(t, 1, n)

	require.NoError(t, s.Set(ctx, "users/u1/firstName", "Grace"))
	eventually(t, func() bool { n, _ := rec.count(); return n == 2 })
	assert.Equal(t, "Grace", rec.last().Child("firstName").Value)

	db.setFail(errors.New("unavailable"))
	eventually(t, func() bool { _, e := rec.count(); return e == 1 })
	time.Sleep(30 * time.Millisecond)
	_, e := rec.count()
	assert.Equal(t, 1, e, "one error per failure run")
	db.setFail(nil)

	require.NoError(t, s.Unsubscribe(h))
	assert.Zero(t, s.Subscriptions())
	assert.ErrorIs(t, s.Unsubscribe(h), relay_errors.ErrNotFound)
}

func TestStoreClose(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Subscribe(context.Background(), "users/u1", func(store.Snapshot, error) {})
	require.NoError(t, err)
	s.Close()
	assert.ErrorIs(t, s.Set(context.Background(), "users/u1/x", 1), relay_errors.ErrStoreClosed)
}
