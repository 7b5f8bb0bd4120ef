// Package roster keeps a live projection of one user's chats, their
// participants, messages and starred messages, driven by store
// subscriptions.
package roster

import (
	"context"
	"errors"
	"sync"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"
	"relay-chat/internal/repository"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

type chatState struct {
	reported     bool
	messagesOpen bool
	participants map[string]struct{}
}

type Option func(*Synchronizer)

// WithOnChange registers fn to receive a copy of the projection after every
// change. fn runs on the store's callback goroutine and must not block.
func WithOnChange(fn func(Projection)) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// Synchronizer owns the roster of one session. Create it at sign-in and
// Close it at sign-out.
type Synchronizer struct {
	uid      string
	ctx      context.Context
	registry *Registry
	log      *logger.Logger
	onChange func(Projection)

	mu     sync.Mutex
	closed bool
	index  map[string]struct{}
	chats  map[string]*chatState
	proj   Projection
	ready  chan struct{}
	once   sync.Once

	indexSeen bool
}

// New subscribes to the user's chat index and starred messages. Everything
// else is subscribed as the index reports chats.
func New(ctx context.Context, st store.Store, uid string, opts ...Option) (*Synchronizer, error) {
	if uid == "" {
		return nil, relay_errors.ErrInvalidInput
	}
	s := &Synchronizer{
		uid:      uid,
		ctx:      context.WithValue(context.WithoutCancel(ctx), logger.UserIdKey, uid),
		registry: NewRegistry(st),
		index:    map[string]struct{}{},
		chats:    map[string]*chatState{},
		proj:     newProjection(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetGlobalLogger()
	}

	if _, err := s.registry.Acquire(s.ctx, store.UserChatsPath(uid), s.onIndex); err != nil {
		return nil, err
	}
	if _, err := s.registry.Acquire(s.ctx, store.StarredPath(uid), s.onStarred); err != nil {
		_ = s.registry.CloseAll()
		return nil, err
	}
	return s, nil
}

func (s *Synchronizer) UID() string { return s.uid }

// Close releases every subscription. Callbacks that arrive afterwards are
// ignored. Close is safe to call more than once.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.registry.CloseAll()
}

// Ready is closed once every chat in the index has reported metadata.
func (s *Synchronizer) Ready() <-chan struct{} {
	return s.ready
}

func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.Loaded
}

// ChatsFound returns the number of chats referenced by the index.
func (s *Synchronizer) ChatsFound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.Found
}

// Snapshot returns a copy of the projection.
func (s *Synchronizer) Snapshot() Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.clone()
}

// Chats returns the chats sorted by last update, newest first.
func (s *Synchronizer) Chats() []chat.Chat {
	return s.Snapshot().Sorted()
}

func (s *Synchronizer) Renderable(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.Renderable(chatID)
}

// FindDirectChat returns the loaded one to one chat with other, if any.
func (s *Synchronizer) FindDirectChat(other string) (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.DirectChat(s.uid, other)
}

// Subscriptions returns the number of store subscriptions the roster holds.
func (s *Synchronizer) Subscriptions() int {
	return s.registry.Open()
}

func (s *Synchronizer) onIndex(snap store.Snapshot, err error) {
	if err != nil {
		s.log.Ctx(s.ctx).Warn("chat index subscription failed", zap.Error(err))
		// an index that never arrives counts as empty so Loaded still latches
		s.update(func() { s.indexSeen = true })
		return
	}
	s.update(func() {
		s.indexSeen = true
		ids := map[string]struct{}{}
		for _, e := range repository.IndexFromSnapshot(snap) {
			ids[e.ChatID] = struct{}{}
		}
		for id := range s.index {
			if _, ok := ids[id]; !ok {
				s.closeChat(id)
			}
		}
		for id := range ids {
			if _, ok := s.index[id]; !ok {
				s.openChat(id)
			}
		}
		s.index = ids
		s.proj.Found = len(ids)
	})
}

func (s *Synchronizer) openChat(id string) {
	st := &chatState{participants: map[string]struct{}{}}
	s.chats[id] = st
	if _, err := s.registry.Acquire(s.ctx, store.ChatPath(id), s.chatListener(id)); err != nil {
		s.log.Ctx(s.ctx).Warn("chat subscription failed", zap.String("chat_id", id), zap.Error(err))
		// nothing will report for this chat
		st.reported = true
	}
}

// closeChat forgets a chat that left the index.
func (s *Synchronizer) closeChat(id string) {
	st, ok := s.chats[id]
	if !ok {
		return
	}
	s.dropChat(id, st)
	s.release(store.ChatPath(id))
	delete(s.chats, id)
}

// dropChat removes the chat from the projection and releases its messages
// and participants. The metadata subscription stays open.
func (s *Synchronizer) dropChat(id string, st *chatState) {
	delete(s.proj.Chats, id)
	delete(s.proj.Messages, id)
	if st.messagesOpen {
		s.release(store.MessagesPath(id))
		st.messagesOpen = false
	}
	for uid := range st.participants {
		s.releaseUser(uid)
	}
	st.participants = map[string]struct{}{}
}

func (s *Synchronizer) chatListener(id string) store.Listener {
	return func(snap store.Snapshot, err error) {
		s.update(func() { s.applyChat(id, snap, err) })
	}
}

func (s *Synchronizer) applyChat(id string, snap store.Snapshot, err error) {
	st, ok := s.chats[id]
	if !ok {
		return
	}
	st.reported = true
	log := s.log.Ctx(s.ctx).With(zap.String("chat_id", id))
	if err != nil {
		log.Warn("chat subscription error", zap.Error(err))
		return
	}

	c, err := chat.FromSnapshot(snap)
	switch {
	case errors.Is(err, relay_errors.ErrNotFound):
		s.dropChat(id, st)
		return
	case err != nil:
		log.Warn("ignoring malformed chat record", zap.Error(err))
		return
	case !c.HasMember(s.uid):
		s.dropChat(id, st)
		return
	}
	s.proj.Chats[id] = c

	if !st.messagesOpen {
		if _, err := s.registry.Acquire(s.ctx, store.MessagesPath(id), s.messagesListener(id)); err != nil {
			log.Warn("messages subscription failed", zap.Error(err))
		} else {
			st.messagesOpen = true
		}
	}

	want := make(map[string]struct{}, len(c.Users))
	for _, uid := range c.Users {
		want[uid] = struct{}{}
		if _, ok := st.participants[uid]; ok {
			continue
		}
		if s.acquireUser(uid) {
			st.participants[uid] = struct{}{}
		}
	}
	for uid := range st.participants {
		if _, ok := want[uid]; !ok {
			s.releaseUser(uid)
			delete(st.participants, uid)
		}
	}
}

func (s *Synchronizer) acquireUser(uid string) bool {
	path := store.UserPath(uid)
	_, err := s.registry.Acquire(s.ctx, path, func(snap store.Snapshot, err error) {
		s.update(func() { s.applyUser(uid, snap, err) })
	})
	if err != nil {
		s.log.Ctx(s.ctx).Warn("profile subscription failed", zap.String("uid", uid), zap.Error(err))
		return false
	}
	if _, ok := s.proj.Users[uid]; !ok {
		s.proj.Users[uid] = nil
	}
	return true
}

func (s *Synchronizer) releaseUser(uid string) {
	if closed := s.release(store.UserPath(uid)); closed {
		delete(s.proj.Users, uid)
	}
}

func (s *Synchronizer) release(path string) bool {
	closed, err := s.registry.Release(path)
	if err != nil {
		s.log.Ctx(s.ctx).Warn("unsubscribe failed", zap.String("path", path), zap.Error(err))
	}
	return closed
}

func (s *Synchronizer) applyUser(uid string, snap store.Snapshot, err error) {
	if s.registry.Refs(store.UserPath(uid)) == 0 {
		return
	}
	if err != nil {
		s.log.Ctx(s.ctx).Warn("profile subscription error", zap.String("uid", uid), zap.Error(err))
		return
	}
	u, err := user.FromSnapshot(snap)
	switch {
	case errors.Is(err, relay_errors.ErrNotFound):
		s.proj.Users[uid] = nil
	case err != nil:
		s.log.Ctx(s.ctx).Warn("ignoring malformed profile", zap.String("uid", uid), zap.Error(err))
	default:
		s.proj.Users[uid] = &u
	}
}

func (s *Synchronizer) messagesListener(id string) store.Listener {
	return func(snap store.Snapshot, err error) {
		s.update(func() {
			st, ok := s.chats[id]
			if !ok || !st.messagesOpen {
				return
			}
			if err != nil {
				s.log.Ctx(s.ctx).Warn("messages subscription error", zap.String("chat_id", id), zap.Error(err))
				return
			}
			msgs, rejected := message.ListFromSnapshot(snap)
			for _, r := range rejected {
				s.log.Ctx(s.ctx).Warn("skipping malformed message",
					zap.String("chat_id", id), zap.String("message_id", r.Key), zap.Error(r.Err))
			}
			s.proj.Messages[id] = msgs
		})
	}
}

func (s *Synchronizer) onStarred(snap store.Snapshot, err error) {
	if err != nil {
		s.log.Ctx(s.ctx).Warn("starred messages subscription error", zap.Error(err))
		return
	}
	s.update(func() {
		s.proj.Starred = message.StarsFromSnapshot(snap)
		if s.proj.Starred == nil {
			s.proj.Starred = map[string]map[string]message.Star{}
		}
	})
}

// update applies fn under the lock, refreshes the loaded latch and
// publishes the result.
func (s *Synchronizer) update(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Ctx(s.ctx).Error("roster callback panicked", zap.Any("panic", r))
			}
		}()
		fn()
	}()
	s.checkLoaded()
	var out Projection
	notify := s.onChange != nil
	if notify {
		out = s.proj.clone()
	}
	s.mu.Unlock()
	if notify {
		s.onChange(out)
	}
}

func (s *Synchronizer) checkLoaded() {
	if s.proj.Loaded {
		return
	}
	if !s.indexSeen {
		return
	}
	for id := range s.index {
		if st, ok := s.chats[id]; !ok || !st.reported {
			return
		}
	}
	s.proj.Loaded = true
	s.once.Do(func() { close(s.ready) })
}
