package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
)

type registration struct {
	handle store.Handle
	refs   int
}

// Registry shares store subscriptions by path. The first Acquire of a path
// subscribes, the last Release unsubscribes.
type Registry struct {
	store store.Store

	mu     sync.Mutex
	subs   map[string]*registration
	closed bool
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st, subs: make(map[string]*registration)}
}

// Acquire takes a reference on path. The listener is only installed when the
// path is not open yet; the returned bool reports whether that happened.
func (r *Registry) Acquire(ctx context.Context, path string, listener store.Listener) (bool, error) {
	path = store.Join(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, relay_errors.ErrStoreClosed
	}
	if reg, ok := r.subs[path]; ok {
		reg.refs++
		return false, nil
	}
	h, err := r.store.Subscribe(ctx, path, listener)
	if err != nil {
		return false, fmt.Errorf("subscribe %s: %w", path, err)
	}
	r.subs[path] = &registration{handle: h, refs: 1}
	return true, nil
}

// Release drops one reference and reports whether the subscription was
// closed.
func (r *Registry) Release(path string) (bool, error) {
	path = store.Join(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.subs[path]
	if !ok {
		return false, nil
	}
	reg.refs--
	if reg.refs > 0 {
		return false, nil
	}
	delete(r.subs, path)
	return true, r.store.Unsubscribe(reg.handle)
}

// Refs returns the reference count of path, zero when it is not open.
func (r *Registry) Refs(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.subs[store.Join(path)]; ok {
		return reg.refs
	}
	return 0
}

// Open returns the number of open subscriptions.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll unsubscribes every open path once, whatever its count, and
// rejects later acquisitions.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var errs []error
	for path, reg := range r.subs {
		if err := r.store.Unsubscribe(reg.handle); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", path, err))
		}
	}
	r.subs = make(map[string]*registration)
	return errors.Join(errs...)
}
