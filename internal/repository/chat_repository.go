package repository

import (
	"context"
	"fmt"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

type StoreChatRepository struct {
	store store.Store
}

func NewChatRepository(s store.Store) ChatRepository {
	return &StoreChatRepository{store: s}
}

func (r *StoreChatRepository) Create(ctx context.Context, record map[string]any) (string, error) {
	return r.store.Push(ctx, store.ChatsRoot, record)
}

func (r *StoreChatRepository) GetByID(ctx context.Context, chatID string) (chat.Chat, error) {
	if chatID == "" {
		return chat.Chat{}, relay_errors.ErrInvalidInput
	}
	snap, err := r.store.Get(ctx, store.ChatPath(chatID))
	if err != nil {
		return chat.Chat{}, err
	}
	return chat.FromSnapshot(snap)
}

func (r *StoreChatRepository) Update(ctx context.Context, chatID string, fields map[string]any) error {
	return r.store.Update(ctx, store.ChatPath(chatID), fields)
}

// List returns every readable chat. Malformed records are logged and left
// out.
func (r *StoreChatRepository) List(ctx context.Context) ([]chat.Chat, error) {
	snap, err := r.store.Get(ctx, store.ChatsRoot)
	if err != nil {
		return nil, err
	}
	children := snap.Children()
	out := make([]chat.Chat, 0, len(children))
	for _, child := range children {
		c, err := chat.FromSnapshot(child)
		if err != nil {
			logger.GetGlobalLogger().Ctx(ctx).Warn("skipping chat record", zap.String("chat_id", child.Key()), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type StoreChatIndexRepository struct {
	store store.Store
}

func NewChatIndexRepository(s store.Store) ChatIndexRepository {
	return &StoreChatIndexRepository{store: s}
}

// Entries returns the user's index in store order. An absent index is empty.
func (r *StoreChatIndexRepository) Entries(ctx context.Context, uid string) ([]IndexEntry, error) {
	snap, err := r.store.Get(ctx, store.UserChatsPath(uid))
	if err != nil {
		return nil, err
	}
	return IndexFromSnapshot(snap), nil
}

func (r *StoreChatIndexRepository) Add(ctx context.Context, uid, chatID string) (string, error) {
	if uid == "" || chatID == "" {
		return "", fmt.Errorf("index entry: %w", relay_errors.ErrInvalidInput)
	}
	return r.store.Push(ctx, store.UserChatsPath(uid), chatID)
}

func (r *StoreChatIndexRepository) RemoveEntry(ctx context.Context, uid, entryKey string) error {
	return r.store.Remove(ctx, store.Join(store.UserChatsPath(uid), entryKey))
}

// IndexFromSnapshot reads a userChats/{uid} snapshot. Entries whose value is
// not a chat id string are ignored.
func IndexFromSnapshot(snap store.Snapshot) []IndexEntry {
	children := snap.Children()
	out := make([]IndexEntry, 0, len(children))
	for _, child := range children {
		chatID, ok := child.Value.(string)
		if !ok || chatID == "" {
			continue
		}
		out = append(out, IndexEntry{Key: child.Key(), ChatID: chatID})
	}
	return out
}
