package firebase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

var _ store.Store = (*Store)(nil)

// Store is the Realtime Database implementation of store.Store. The Admin
// SDK has no streaming listener, so subscriptions poll their path and
// deliver only when the value changed.
type Store struct {
	db       Database
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	subs   map[uint64]context.CancelFunc
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

func NewStore(database Database, pollInterval time.Duration, log *logger.Logger) *Store {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Store{
		db:       database,
		interval: pollInterval,
		log:      log,
		subs:     make(map[uint64]context.CancelFunc),
	}
}

func (s *Store) check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.Validate(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return relay_errors.ErrStoreClosed
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := s.check(ctx, path); err != nil {
		return store.Snapshot{}, err
	}
	value, err := s.read(ctx, path)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: store.Join(path), Value: value}, nil
}

// read fetches and normalizes path. The database returns index keyed
// objects as arrays; normalizing turns them back into maps.
func (s *Store) read(ctx context.Context, path string) (any, error) {
	raw, err := s.db.Get(ctx, store.Join(path))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return store.Normalize(raw)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	norm, err := store.Normalize(value)
	if err != nil {
		return err
	}
	if norm == nil {
		return s.db.Delete(ctx, store.Join(path))
	}
	return s.db.Set(ctx, store.Join(path), norm)
}

func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		if err := store.Validate(k); err != nil {
			return err
		}
		norm, err := store.Normalize(v)
		if err != nil {
			return err
		}
		normalized[store.Join(k)] = norm
	}
	return s.db.Update(ctx, store.Join(path), normalized)
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	return s.db.Delete(ctx, store.Join(path))
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	if err := s.check(ctx, path); err != nil {
		return "", err
	}
	norm, err := store.Normalize(value)
	if err != nil {
		return "", err
	}
	return s.db.Push(ctx, store.Join(path), norm)
}

func (s *Store) Subscribe(ctx context.Context, path string, listener store.Listener) (store.Handle, error) {
	if err := s.check(ctx, path); err != nil {
		return store.Handle{}, err
	}
	path = store.Join(path)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	runCtx, cancel := context.WithCancel(context.Background())
	s.subs[id] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.poll(runCtx, path, listener)
	}()
	return store.Handle{ID: id, Path: path}, nil
}

func (s *Store) poll(ctx context.Context, path string, listener store.Listener) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last any
	started, failing := false, false
	for {
		value, err := s.read(ctx, path)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			// report the first failure of a run, keep polling
			if !failing {
				s.log.Logger.Warn("poll failed", zap.String("path", path), zap.Error(err))
				listener(store.Snapshot{}, err)
			}
			failing = true
		default:
			failing = false
			if !started || !store.Equal(last, value) {
				started = true
				last = store.Clone(value)
				listener(store.Snapshot{Path: path, Value: value}, nil)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Store) Unsubscribe(h store.Handle) error {
	s.mu.Lock()
	cancel, ok := s.subs[h.ID]
	delete(s.subs, h.ID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("subscription %d on %q: %w", h.ID, h.Path, relay_errors.ErrNotFound)
	}
	cancel()
	return nil
}

func (s *Store) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close stops every poller and waits for them.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	for id, cancel := range s.subs {
		cancel()
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
