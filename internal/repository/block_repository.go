package repository

import (
	"context"
	"fmt"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
)

type StoreBlockRepository struct {
	store store.Store
}

func NewBlockRepository(s store.Store) BlockRepository {
	return &StoreBlockRepository{store: s}
}

func (r *StoreBlockRepository) Block(ctx context.Context, blockerUID, blockedUID string) error {
	if err := validPair(blockerUID, blockedUID); err != nil {
		return err
	}
	return r.store.Set(ctx, store.BlockPath(blockerUID, blockedUID), true)
}

func (r *StoreBlockRepository) Unblock(ctx context.Context, blockerUID, blockedUID string) error {
	if err := validPair(blockerUID, blockedUID); err != nil {
		return err
	}
	return r.store.Remove(ctx, store.BlockPath(blockerUID, blockedUID))
}

// IsBlocked reports whether blockerUID has a block entry against blockedUID.
func (r *StoreBlockRepository) IsBlocked(ctx context.Context, blockerUID, blockedUID string) (bool, error) {
	snap, err := r.store.Get(ctx, store.BlockPath(blockerUID, blockedUID))
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

func (r *StoreBlockRepository) ListBlocked(ctx context.Context, blockerUID string) ([]string, error) {
	snap, err := r.store.Get(ctx, store.Join(store.BlockListRoot, blockerUID))
	if err != nil {
		return nil, err
	}
	children := snap.Children()
	out := make([]string, 0, len(children))
	for _, child := range children {
		out = append(out, child.Key())
	}
	return out, nil
}

func validPair(blockerUID, blockedUID string) error {
	if blockerUID == "" || blockedUID == "" || blockerUID == blockedUID {
		return fmt.Errorf("block %q -> %q: %w", blockerUID, blockedUID, relay_errors.ErrInvalidInput)
	}
	return nil
}
