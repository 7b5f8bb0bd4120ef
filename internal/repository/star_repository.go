package repository

import (
	"context"

	"relay-chat/internal/domain/message"
	"relay-chat/internal/store"
)

type StoreStarRepository struct {
	store store.Store
}

func NewStarRepository(s store.Store) StarRepository {
	return &StoreStarRepository{store: s}
}

func (r *StoreStarRepository) Exists(ctx context.Context, uid, chatID, messageID string) (bool, error) {
	snap, err := r.store.Get(ctx, store.StarPath(uid, chatID, messageID))
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

func (r *StoreStarRepository) Create(ctx context.Context, uid string, s message.Star) error {
	return r.store.Set(ctx, store.StarPath(uid, s.ChatID, s.MessageID), s.ToRecord())
}

func (r *StoreStarRepository) Delete(ctx context.Context, uid, chatID, messageID string) error {
	return r.store.Remove(ctx, store.StarPath(uid, chatID, messageID))
}

func (r *StoreStarRepository) List(ctx context.Context, uid string) (map[string]map[string]message.Star, error) {
	snap, err := r.store.Get(ctx, store.StarredPath(uid))
	if err != nil {
		return nil, err
	}
	return message.StarsFromSnapshot(snap), nil
}
