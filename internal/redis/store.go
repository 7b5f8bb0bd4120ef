package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"relay-chat/internal/events"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store keeps the realtime tree in Redis. Each {collection}/{id} subtree is
// one JSON document; writes below it are read-modify-write transactions on
// that document and publish the new document to its change channel.
// Reads and writes must address at least a collection, writes at least a
// document.
//
// Subscriptions share one Pub/Sub connection. Each distinct channel or
// pattern is subscribed once and its messages are routed to every watcher
// on it.
type Store struct {
	client         *goredis.Client
	log            *logger.Logger
	maxRetries     int
	confirmTimeout time.Duration
	now            func() time.Time

	mu      sync.Mutex
	pubsub  *goredis.PubSub
	subs    map[uint64]*watcher
	routes  map[string]*route
	pending map[string]int
	nextID  uint64
	closed  bool
	wg      sync.WaitGroup
}

var _ store.Store = (*Store)(nil)

// document is the stored form of one subtree.
type document struct {
	Version int64 `json:"v"`
	Data    any   `json:"d"`
}

func NewStore(client *goredis.Client, log *logger.Logger) *Store {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Store{
		client:         client,
		log:            log,
		maxRetries:     16,
		confirmTimeout: 10 * time.Second,
		now:            time.Now,
		subs:           make(map[uint64]*watcher),
		routes:         make(map[string]*route),
		pending:        make(map[string]int),
	}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("rt:%s/%s", collection, id)
}

func indexKey(collection string) string {
	return fmt.Sprintf("rt:idx:%s", collection)
}

func (s *Store) split(path string, minDepth int) ([]string, error) {
	if err := store.Validate(path); err != nil {
		return nil, err
	}
	segs := store.Split(path)
	if len(segs) < minDepth {
		return nil, fmt.Errorf("%q is above document level: %w", path, relay_errors.ErrInvalidPath)
	}
	return segs, nil
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *Store) readDoc(ctx context.Context, c getter, collection, id string) (document, error) {
	raw, err := c.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return document{}, nil
	}
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("%s/%s: %w: %v", collection, id, relay_errors.ErrMalformedRecord, err)
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	segs, err := s.split(path, 1)
	if err != nil {
		return store.Snapshot{}, err
	}
	if len(segs) == 1 {
		value, err := s.readCollection(ctx, segs[0])
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Path: store.Join(path), Value: value}, nil
	}
	doc, err := s.readDoc(ctx, s.client, segs[0], segs[1])
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: store.Join(path), Value: store.GetIn(doc.Data, segs[2:])}, nil
}

func (s *Store) readCollection(ctx context.Context, collection string) (any, error) {
	ids, err := s.client.SMembers(ctx, indexKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(ids))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			s.log.Logger.Warn("skipping malformed document", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if doc.Data != nil {
			out[ids[i]] = doc.Data
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	segs, err := s.split(path, 2)
	if err != nil {
		return err
	}
	norm, err := store.Normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, segs[0], segs[1], func(data any) any {
		return store.SetIn(data, segs[2:], norm)
	})
}

// Update writes each entry below path in one transaction. Keys may contain
// slashes; nil values remove.
func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	segs, err := s.split(path, 2)
	if err != nil {
		return err
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
		normalized[k] = norm
	}
	return s.mutate(ctx, segs[0], segs[1], func(data any) any {
		for k, v := range normalized {
			rel := append(append([]string{}, segs[2:]...), store.Split(k)...)
			data = store.SetIn(data, rel, v)
		}
		return data
	})
}

func (s *Store) Remove(ctx context.Context, path string) error {
	segs, err := s.split(path, 2)
	if err != nil {
		return err
	}
	return s.mutate(ctx, segs[0], segs[1], func(data any) any {
		return store.SetIn(data, segs[2:], nil)
	})
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	if _, err := s.split(path, 1); err != nil {
		return "", err
	}
	key, err := store.NewPushKey()
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, store.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// mutate runs fn on the current document inside WATCH/MULTI and retries when
// another writer got in between.
func (s *Store) mutate(ctx context.Context, collection, id string, fn func(data any) any) error {
	if s.isClosed() {
		return relay_errors.ErrStoreClosed
	}
	key := docKey(collection, id)
	txf := func(tx *goredis.Tx) error {
		doc, err := s.readDoc(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		before := store.Clone(doc.Data)
		after := fn(doc.Data)
		if store.Equal(before, after) {
			return nil
		}
		next := document{Version: doc.Version + 1, Data: after}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		env, err := events.NewDocumentEnvelope(collection, id, next.Version, after, s.now())
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			// removed documents keep their version so readers never see it
			// go backwards
			pipe.Set(ctx, key, raw, 0)
			if after == nil {
				pipe.SRem(ctx, indexKey(collection), id)
			} else {
				pipe.SAdd(ctx, indexKey(collection), id)
			}
			return NewPublisher(pipe).PublishEnvelope(ctx, env)
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("write %s: %w: too much contention", key, relay_errors.ErrConflict)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// route is one Redis channel or pattern and the watchers fed from it.
type route struct {
	name      string
	pattern   bool
	watchers  map[uint64]*watcher
	ready     chan struct{}
	confirmed bool
}

func channelRoute(name string) string { return "c:" + name }
func patternRoute(name string) string { return "p:" + name }

// routeFor maps a subscription path to the channel (document) or pattern
// (collection) carrying its changes.
func routeFor(segs []string) (key, name string, pattern bool) {
	if len(segs) == 1 {
		name = events.CollectionPattern(segs[0])
		return patternRoute(name), name, true
	}
	name = events.DocumentChannel(segs[0], segs[1])
	return channelRoute(name), name, false
}

// pubsubLocked opens the shared Pub/Sub connection on first use. Callers
// hold s.mu.
func (s *Store) pubsubLocked() *goredis.PubSub {
	if s.pubsub == nil {
		s.pubsub = s.client.Subscribe(context.Background())
		s.wg.Add(1)
		go s.dispatch(s.pubsub.ChannelWithSubscriptions())
	}
	return s.pubsub
}

// Subscribe joins the channel (or pattern) of path and, once Redis has
// confirmed it, delivers the initial value. Callbacks run on a goroutine
// owned by the subscription, one at a time.
func (s *Store) Subscribe(ctx context.Context, path string, listener store.Listener) (store.Handle, error) {
	segs, err := s.split(path, 1)
	if err != nil {
		return store.Handle{}, err
	}
	key, name, pattern := routeFor(segs)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.Handle{}, relay_errors.ErrStoreClosed
	}
	r := s.routes[key]
	if r == nil {
		r = &route{name: name, pattern: pattern, watchers: make(map[uint64]*watcher), ready: make(chan struct{})}
		ps := s.pubsubLocked()
		if pattern {
			err = ps.PSubscribe(ctx, name)
		} else {
			err = ps.Subscribe(ctx, name)
		}
		if err != nil {
			s.mu.Unlock()
			return store.Handle{}, fmt.Errorf("subscribe %s: %w", path, err)
		}
		s.routes[key] = r
		s.pending[key]++
	}
	s.nextID++
	runCtx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		id:       s.nextID,
		store:    s,
		route:    key,
		segs:     segs,
		path:     store.Join(path),
		listener: listener,
		ctx:      runCtx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		versions: map[string]int64{},
	}
	r.watchers[w.id] = w
	s.subs[w.id] = w
	ready := r.ready
	s.mu.Unlock()

	h := store.Handle{ID: w.id, Path: w.path}
	timer := time.NewTimer(s.confirmTimeout)
	defer timer.Stop()
	select {
	case <-ready:
	case <-runCtx.Done():
		return store.Handle{}, relay_errors.ErrStoreClosed
	case <-ctx.Done():
		_ = s.Unsubscribe(h)
		return store.Handle{}, ctx.Err()
	case <-timer.C:
		_ = s.Unsubscribe(h)
		return store.Handle{}, fmt.Errorf("subscribe %s: no confirmation from redis: %w", path, relay_errors.ErrServiceUnavailable)
	}

	s.mu.Lock()
	if s.closed || s.subs[w.id] == nil {
		s.mu.Unlock()
		return store.Handle{}, relay_errors.ErrStoreClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		w.run()
	}()
	return h, nil
}

// Unsubscribe stops delivery. It does not wait for a callback in progress.
// The channel is left once its last watcher is gone.
func (s *Store) Unsubscribe(h store.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.subs[h.ID]
	if !ok {
		return fmt.Errorf("subscription %d on %q: %w", h.ID, h.Path, relay_errors.ErrNotFound)
	}
	delete(s.subs, h.ID)
	w.cancel()

	r := s.routes[w.route]
	if r == nil {
		return nil
	}
	delete(r.watchers, h.ID)
	if len(r.watchers) > 0 {
		return nil
	}
	delete(s.routes, w.route)
	// sent under s.mu so a later Subscribe to the same channel is ordered
	// after it
	var err error
	if r.pattern {
		err = s.pubsub.PUnsubscribe(context.Background(), r.name)
	} else {
		err = s.pubsub.Unsubscribe(context.Background(), r.name)
	}
	if err != nil {
		s.log.Logger.Warn("leaving change channel failed", zap.String("channel", r.name), zap.Error(err))
	}
	return nil
}

// Subscriptions returns the number of open subscriptions.
func (s *Store) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Channels returns the number of channels and patterns currently joined.
func (s *Store) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

// Close stops every subscription, closes the Pub/Sub connection and waits
// for the goroutines.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, w := range s.subs {
		w.cancel()
		delete(s.subs, id)
	}
	s.routes = make(map[string]*route)
	ps := s.pubsub
	s.mu.Unlock()

	if ps != nil {
		_ = ps.Close()
	}
	s.wg.Wait()
}

// dispatch reads the shared connection until it is closed.
func (s *Store) dispatch(ch <-chan interface{}) {
	defer s.wg.Done()
	for msg := range ch {
		switch m := msg.(type) {
		case *goredis.Subscription:
			s.confirm(m)
		case *goredis.Message:
			s.fanOut(m)
		}
	}
}

// confirm marks a route ready once every subscribe sent for it has been
// answered. Replies to earlier subscribes of the same name are counted so
// a leave and rejoin cannot be confirmed by the old reply.
func (s *Store) confirm(m *goredis.Subscription) {
	var key string
	switch m.Kind {
	case "subscribe":
		key = channelRoute(m.Channel)
	case "psubscribe":
		key = patternRoute(m.Channel)
	default:
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] > 0 {
		s.pending[key]--
	}
	if s.pending[key] > 0 {
		return
	}
	delete(s.pending, key)
	if r := s.routes[key]; r != nil && !r.confirmed {
		r.confirmed = true
		close(r.ready)
	}
}

// fanOut queues the payload on every watcher of its channel or pattern.
func (s *Store) fanOut(m *goredis.Message) {
	key := channelRoute(m.Channel)
	if m.Pattern != "" {
		key = patternRoute(m.Pattern)
	}
	s.mu.Lock()
	r := s.routes[key]
	var targets []*watcher
	if r != nil {
		targets = make([]*watcher, 0, len(r.watchers))
		for _, w := range r.watchers {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()
	for _, w := range targets {
		w.enqueue([]byte(m.Payload))
	}
}

type watcher struct {
	id       uint64
	store    *Store
	route    string
	segs     []string
	path     string
	listener store.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	queue [][]byte
	wake  chan struct{}

	// collection subscriptions keep the documents they have seen
	docs     map[string]any
	versions map[string]int64
	last     any
	started  bool
}

func (w *watcher) enqueue(payload []byte) {
	w.mu.Lock()
	w.queue = append(w.queue, payload)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run reads the initial value and then applies queued changes in order.
// Changes queued before the initial read are dropped by version.
func (w *watcher) run() {
	if err := w.initial(w.ctx); err != nil {
		if w.ctx.Err() == nil {
			w.listener(store.Snapshot{}, err)
		}
		return
	}
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}
		w.mu.Lock()
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()
		for _, payload := range batch {
			if w.ctx.Err() != nil {
				return
			}
			env, err := events.Decode(payload)
			if err != nil {
				w.store.log.Logger.Warn("dropping undecodable change", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.apply(env)
		}
	}
}

func (w *watcher) initial(ctx context.Context) error {
	collection := w.segs[0]
	if len(w.segs) == 1 {
		ids, err := w.store.client.SMembers(ctx, indexKey(collection)).Result()
		if err != nil {
			return err
		}
		w.docs = map[string]any{}
		for _, id := range ids {
			doc, err := w.store.readDoc(ctx, w.store.client, collection, id)
			if err != nil {
				return err
			}
			w.versions[id] = doc.Version
			if doc.Data != nil {
				w.docs[id] = doc.Data
			}
		}
		w.deliver(w.collectionValue())
		return nil
	}
	doc, err := w.store.readDoc(ctx, w.store.client, collection, w.segs[1])
	if err != nil {
		return err
	}
	w.versions[w.segs[1]] = doc.Version
	w.deliver(store.GetIn(doc.Data, w.segs[2:]))
	return nil
}

func (w *watcher) apply(env events.Envelope) {
	if env.Version <= w.versions[env.AggregateID] {
		return
	}
	doc, err := env.Document()
	if err != nil {
		w.store.log.Logger.Warn("dropping malformed change", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.versions[env.AggregateID] = env.Version
	if len(w.segs) == 1 {
		if doc == nil {
			delete(w.docs, env.AggregateID)
		} else {
			w.docs[env.AggregateID] = doc
		}
		w.deliver(w.collectionValue())
		return
	}
	w.deliver(store.GetIn(doc, w.segs[2:]))
}

func (w *watcher) collectionValue() any {
	if len(w.docs) == 0 {
		return nil
	}
	return store.Clone(w.docs)
}

// deliver calls the listener when the value differs from the last one
// delivered. The first value is always delivered.
func (w *watcher) deliver(value any) {
	if w.started && store.Equal(w.last, value) {
		return
	}
	w.started = true
	w.last = store.Clone(value)
	w.listener(store.Snapshot{Path: w.path, Value: value}, nil)
}
