// Package proxy checks whether a user may act on a chat before a handler
// calls into the services.
package proxy

import (
	"context"
	"fmt"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
)

type AccessControl struct {
	chats repository.ChatRepository
}

func NewAccessControl(chats repository.ChatRepository) *AccessControl {
	return &AccessControl{chats: chats}
}

// CanViewChat returns the chat when userID is one of its members.
func (a *AccessControl) CanViewChat(ctx context.Context, userID, chatID string) (chat.Chat, error) {
	return a.ensureParticipant(ctx, chatID, userID)
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID, chatID string) (chat.Chat, error) {
	return a.ensureParticipant(ctx, chatID, userID)
}

// CanManageChat allows members to rename a chat and change its members.
// Membership of a one to one chat is fixed; a member may still leave it.
func (a *AccessControl) CanManageChat(ctx context.Context, userID, chatID string, membership bool) (chat.Chat, error) {
	c, err := a.ensureParticipant(ctx, chatID, userID)
	if err != nil {
		return chat.Chat{}, err
	}
	if membership && !c.IsGroupChat {
		return chat.Chat{}, fmt.Errorf("members of a direct chat are fixed: %w", relay_errors.ErrForbidden)
	}
	return c, nil
}

func (a *AccessControl) ensureParticipant(ctx context.Context, chatID, userID string) (chat.Chat, error) {
	if a.chats == nil {
		return chat.Chat{}, relay_errors.ErrForbidden
	}
	c, err := a.chats.GetByID(ctx, chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if !c.HasMember(userID) {
		return chat.Chat{}, relay_errors.ErrForbidden
	}
	return c, nil
}
