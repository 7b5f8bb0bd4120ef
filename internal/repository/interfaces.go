package repository

import (
	"context"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, uid string) (user.User, error)
	Update(ctx context.Context, uid string, fields map[string]any) error
	Delete(ctx context.Context, uid string) error
	Search(ctx context.Context, prefix string, limit int) ([]user.User, error)

	GetPushTokens(ctx context.Context, uid string) ([]user.PushToken, error)
	AddPushToken(ctx context.Context, uid, token string) (bool, error)
	RemovePushToken(ctx context.Context, uid, token string) (bool, error)
}

type ChatRepository interface {
	Create(ctx context.Context, record map[string]any) (string, error)
	GetByID(ctx context.Context, chatID string) (chat.Chat, error)
	Update(ctx context.Context, chatID string, fields map[string]any) error
	List(ctx context.Context) ([]chat.Chat, error)
}

// IndexEntry is one element of a user's chat index, userChats/{uid}/{Key}.
type IndexEntry struct {
	Key    string
	ChatID string
}

type ChatIndexRepository interface {
	Entries(ctx context.Context, uid string) ([]IndexEntry, error)
	Add(ctx context.Context, uid, chatID string) (string, error)
	RemoveEntry(ctx context.Context, uid, entryKey string) error
}

type MessageRepository interface {
	Append(ctx context.Context, chatID string, m message.Message) (string, error)
	List(ctx context.Context, chatID string) ([]message.Message, error)
	Count(ctx context.Context, chatID string) (int, error)
}

type BlockRepository interface {
	Block(ctx context.Context, blockerUID, blockedUID string) error
	Unblock(ctx context.Context, blockerUID, blockedUID string) error
	IsBlocked(ctx context.Context, blockerUID, blockedUID string) (bool, error)
	ListBlocked(ctx context.Context, blockerUID string) ([]string, error)
}

type StarRepository interface {
	Exists(ctx context.Context, uid, chatID, messageID string) (bool, error)
	Create(ctx context.Context, uid string, s message.Star) error
	Delete(ctx context.Context, uid, chatID, messageID string) error
	List(ctx context.Context, uid string) (map[string]map[string]message.Star, error)
}
