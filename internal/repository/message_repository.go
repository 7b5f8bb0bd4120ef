package repository

import (
	"context"

	"relay-chat/internal/domain/message"
	"relay-chat/internal/store"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

type StoreMessageRepository struct {
	store store.Store
}

func NewMessageRepository(s store.Store) MessageRepository {
	return &StoreMessageRepository{store: s}
}

func (r *StoreMessageRepository) Append(ctx context.Context, chatID string, m message.Message) (string, error) {
	return r.store.Push(ctx, store.MessagesPath(chatID), m.ToRecord())
}

func (r *StoreMessageRepository) List(ctx context.Context, chatID string) ([]message.Message, error) {
	snap, err := r.store.Get(ctx, store.MessagesPath(chatID))
	if err != nil {
		return nil, err
	}
	msgs, rejected := message.ListFromSnapshot(snap)
	for _, rej := range rejected {
		logger.GetGlobalLogger().Ctx(ctx).Warn("skipping message record",
			zap.String("chat_id", chatID), zap.String("message_id", rej.Key), zap.Error(rej.Err))
	}
	return msgs, nil
}

// Count returns the number of stored entries, malformed ones included.
func (r *StoreMessageRepository) Count(ctx context.Context, chatID string) (int, error) {
	snap, err := r.store.Get(ctx, store.MessagesPath(chatID))
	if err != nil {
		return 0, err
	}
	return len(snap.Children()), nil
}
