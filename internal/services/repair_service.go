package services

import (
	"context"
	"errors"
	"fmt"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/repository"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

// RepairReport lists the index entries a reconciliation pass added, keyed by
// member uid.
type RepairReport struct {
	ChatsChecked int
	Added        map[string][]string
}

func (r *RepairReport) merge(chatID string, uids []string) {
	r.ChatsChecked++
	if len(uids) == 0 {
		return
	}
	if r.Added == nil {
		r.Added = make(map[string][]string)
	}
	for _, uid := range uids {
		r.Added[uid] = append(r.Added[uid], chatID)
	}
}

// EntriesAdded returns the total number of index entries written.
func (r RepairReport) EntriesAdded() int {
	n := 0
	for _, ids := range r.Added {
		n += len(ids)
	}
	return n
}

// IndexRepairer makes every member's chat index reference the chats that
// list them as a member. It never removes entries.
type IndexRepairer struct {
	chats repository.ChatRepository
	index repository.ChatIndexRepository
	log   *logger.Logger
}

func NewIndexRepairer(chats repository.ChatRepository, index repository.ChatIndexRepository, log *logger.Logger) *IndexRepairer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &IndexRepairer{chats: chats, index: index, log: log}
}

func (r *IndexRepairer) Reconcile(ctx context.Context, chatID string) (RepairReport, error) {
	var report RepairReport
	c, err := r.chats.GetByID(ctx, chatID)
	if err != nil {
		return report, err
	}
	added, err := ensureIndexed(ctx, r.index, c)
	report.merge(c.Key, added)
	return report, err
}

// ReconcileAll walks every chat. Failures on one chat are collected and the
// walk continues.
func (r *IndexRepairer) ReconcileAll(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	chats, err := r.chats.List(ctx)
	if err != nil {
		return report, err
	}
	var errs []error
	for _, c := range chats {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		added, err := ensureIndexed(ctx, r.index, c)
		report.merge(c.Key, added)
		if err != nil {
			r.log.Ctx(ctx).Warn("index repair failed", zap.String("chat_id", c.Key), zap.Error(err))
			errs = append(errs, fmt.Errorf("chat %s: %w", c.Key, err))
		}
	}
	r.log.Ctx(ctx).Info("index repair finished",
		zap.Int("chats", report.ChatsChecked), zap.Int("entries_added", report.EntriesAdded()))
	return report, errors.Join(errs...)
}

// ensureIndexed adds c to the index of every member that lacks it and
// returns those members.
func ensureIndexed(ctx context.Context, index repository.ChatIndexRepository, c chat.Chat) ([]string, error) {
	var added []string
	for _, uid := range c.Users {
		entries, err := index.Entries(ctx, uid)
		if err != nil {
			return added, err
		}
		present := false
		for _, e := range entries {
			if e.ChatID == c.Key {
				present = true
				break
			}
		}
		if present {
			continue
		}
		if _, err := index.Add(ctx, uid, c.Key); err != nil {
			return added, err
		}
		added = append(added, uid)
	}
	return added, nil
}
