package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	relay_errors "relay-chat/pkg/errors"
)

type Op string

const (
	OpSubscribe Op = "subscribe"
	OpGet       Op = "get"
	OpSet       Op = "set"
	OpUpdate    Op = "update"
	OpRemove    Op = "remove"
	OpPush      Op = "push"
)

// FaultFunc lets tests fail individual operations. A non-nil return aborts
// the operation with that error before anything is written.
type FaultFunc func(op Op, path string) error

type subscription struct {
	id       uint64
	path     string
	listener Listener
	closed   atomic.Bool
	// last value delivered, guarded by MemoryStore.mu
	last any
}

type event struct {
	sub  *subscription
	snap Snapshot
	err  error
}

// MemoryStore keeps the whole tree in process. Listener callbacks run one at
// a time on a single dispatcher goroutine, in the order the writes happened.
type MemoryStore struct {
	mu     sync.Mutex
	root   any
	subs   map[uint64]*subscription
	nextID uint64
	fault  FaultFunc

	qmu     sync.Mutex
	qcond   *sync.Cond
	queue   []event
	pending int
	closed  bool
	done    chan struct{}
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		subs: make(map[uint64]*subscription),
		done: make(chan struct{}),
	}
	s.qcond = sync.NewCond(&s.qmu)
	go s.dispatch()
	return s
}

// SetFault installs or clears (nil) the fault hook.
func (s *MemoryStore) SetFault(fn FaultFunc) {
	s.mu.Lock()
	s.fault = fn
	s.mu.Unlock()
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string, listener Listener) (Handle, error) {
	if err := s.check(ctx, OpSubscribe, path); err != nil {
		return Handle{}, err
	}
	s.mu.Lock()
	s.nextID++
	sub := &subscription{id: s.nextID, path: Join(path), listener: listener}
	sub.last = Clone(GetIn(s.root, Split(path)))
	s.subs[sub.id] = sub
	s.enqueue(event{sub: sub, snap: Snapshot{Path: sub.path, Value: Clone(sub.last)}})
	s.mu.Unlock()
	return Handle{ID: sub.id, Path: sub.path}, nil
}

func (s *MemoryStore) Unsubscribe(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[h.ID]
	if !ok {
		return fmt.Errorf("subscription %d on %q: %w", h.ID, h.Path, relay_errors.ErrNotFound)
	}
	sub.closed.Store(true)
	delete(s.subs, h.ID)
	return nil
}

// Subscriptions returns the number of open subscriptions.
func (s *MemoryStore) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// SubscriptionsAt returns the number of open subscriptions on path.
func (s *MemoryStore) SubscriptionsAt(path string) int {
	path = Join(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.path == path {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := s.check(ctx, OpGet, path); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Path: Join(path), Value: Clone(GetIn(s.root, Split(path)))}, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := s.check(ctx, OpSet, path); err != nil {
		return err
	}
	return s.set(path, value)
}

func (s *MemoryStore) set(path string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = SetIn(s.root, Split(path), norm)
	s.notify([]string{path})
	return nil
}

// Update writes each entry of values below path. Keys may contain slashes to
// reach deeper nodes; nil values remove. Subscribers see one change.
func (s *MemoryStore) Update(ctx context.Context, path string, values map[string]any) error {
	if err := s.check(ctx, OpUpdate, path); err != nil {
		return err
	}
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		if err := Validate(k); err != nil {
			return err
		}
		norm, err := Normalize(v)
		if err != nil {
			return err
		}
		normalized[k] = norm
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	written := make([]string, 0, len(normalized))
	for k, v := range normalized {
		full := Join(path, k)
		s.root = SetIn(s.root, Split(full), v)
		written = append(written, full)
	}
	s.notify(written)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	if err := s.check(ctx, OpRemove, path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = SetIn(s.root, Split(path), nil)
	s.notify([]string{path})
	return nil
}

func (s *MemoryStore) Push(ctx context.Context, path string, value any) (string, error) {
	if err := s.check(ctx, OpPush, path); err != nil {
		return "", err
	}
	key, err := NewPushKey()
	if err != nil {
		return "", err
	}
	if err := s.set(Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Flush blocks until every queued listener callback has returned. It must
// not be called from inside a listener.
func (s *MemoryStore) Flush() {
	s.qmu.Lock()
	for s.pending > 0 && !s.closed {
		s.qcond.Wait()
	}
	s.qmu.Unlock()
}

// InjectError delivers err to every subscription on exactly path.
func (s *MemoryStore) InjectError(path string, err error) {
	path = Join(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.path == path {
			s.enqueue(event{sub: sub, err: err})
		}
	}
}

// Close stops the dispatcher. Queued callbacks are discarded.
func (s *MemoryStore) Close() {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.pending = 0
	s.qcond.Broadcast()
	s.qmu.Unlock()
	<-s.done
}

func (s *MemoryStore) check(ctx context.Context, op Op, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(path); err != nil {
		return err
	}
	s.qmu.Lock()
	closed := s.closed
	s.qmu.Unlock()
	if closed {
		return relay_errors.ErrStoreClosed
	}
	s.mu.Lock()
	fault := s.fault
	s.mu.Unlock()
	if fault != nil {
		if err := fault(op, Join(path)); err != nil {
			return err
		}
	}
	return nil
}

// notify queues a snapshot for every subscription whose value changed.
// Callers hold s.mu.
func (s *MemoryStore) notify(written []string) {
	for _, sub := range s.subs {
		affected := false
		for _, w := range written {
			if Related(sub.path, w) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		current := GetIn(s.root, Split(sub.path))
		if Equal(current, sub.last) {
			continue
		}
		sub.last = Clone(current)
		s.enqueue(event{sub: sub, snap: Snapshot{Path: sub.path, Value: Clone(current)}})
	}
}

func (s *MemoryStore) enqueue(ev event) {
	s.qmu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
		s.pending++
		s.qcond.Broadcast()
	}
	s.qmu.Unlock()
}

func (s *MemoryStore) dispatch() {
	defer close(s.done)
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.qcond.Wait()
		}
		if s.closed {
			s.qmu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = event{}
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		if !ev.sub.closed.Load() {
			ev.sub.listener(ev.snap, ev.err)
		}

		s.qmu.Lock()
		if s.pending > 0 {
			s.pending--
		}
		if s.pending == 0 {
			s.qcond.Broadcast()
		}
		s.qmu.Unlock()
	}
}
