package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"relay-chat/internal/domain/user"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

type StoreUserRepository struct {
	store store.Store
}

func NewUserRepository(s store.Store) UserRepository {
	return &StoreUserRepository{store: s}
}

func (r *StoreUserRepository) Create(ctx context.Context, u user.User) error {
	if u.UID == "" {
		return relay_errors.ErrInvalidInput
	}
	return r.store.Set(ctx, store.UserPath(u.UID), u.ToRecord())
}

func (r *StoreUserRepository) GetByID(ctx context.Context, uid string) (user.User, error) {
	snap, err := r.store.Get(ctx, store.UserPath(uid))
	if err != nil {
		return user.User{}, err
	}
	return user.FromSnapshot(snap)
}

func (r *StoreUserRepository) Update(ctx context.Context, uid string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.store.Update(ctx, store.UserPath(uid), fields)
}

func (r *StoreUserRepository) Delete(ctx context.Context, uid string) error {
	return r.store.Remove(ctx, store.UserPath(uid))
}

// Search returns users whose username starts with prefix, ordered by
// username. Malformed profiles are skipped.
func (r *StoreUserRepository) Search(ctx context.Context, prefix string, limit int) ([]user.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, relay_errors.ErrInvalidInput
	}
	snap, err := r.store.Get(ctx, store.UsersRoot)
	if err != nil {
		return nil, err
	}
	var out []user.User
	for _, child := range snap.Children() {
		u, err := user.FromSnapshot(child)
		if err != nil {
			logger.GetGlobalLogger().Ctx(ctx).Debug("skipping user record", zap.String("uid", child.Key()), zap.Error(err))
			continue
		}
		if strings.HasPrefix(u.Username, prefix) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *StoreUserRepository) GetPushTokens(ctx context.Context, uid string) ([]user.PushToken, error) {
	snap, err := r.store.Get(ctx, store.PushTokensPath(uid))
	if err != nil {
		return nil, err
	}
	return user.TokensFromSnapshot(snap), nil
}

// AddPushToken appends token unless it is already registered. It reports
// whether a write happened.
func (r *StoreUserRepository) AddPushToken(ctx context.Context, uid, token string) (bool, error) {
	tokens, err := r.GetPushTokens(ctx, uid)
	if err != nil {
		return false, err
	}
	next := 0
	for _, t := range tokens {
		if t.Token == token {
			return false, nil
		}
		if n, err := strconv.Atoi(t.Key); err == nil && n >= next {
			next = n + 1
		}
	}
	path := store.Join(store.PushTokensPath(uid), strconv.Itoa(next))
	if err := r.store.Set(ctx, path, token); err != nil {
		return false, err
	}
	return true, nil
}

// RemovePushToken removes the first entry holding token, leaving any other
// entries alone.
func (r *StoreUserRepository) RemovePushToken(ctx context.Context, uid, token string) (bool, error) {
	tokens, err := r.GetPushTokens(ctx, uid)
	if err != nil {
		return false, err
	}
	for _, t := range tokens {
		if t.Token != token {
			continue
		}
		if err := r.store.Remove(ctx, store.Join(store.PushTokensPath(uid), t.Key)); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
