package httpdto

import (
	"time"

	"relay-chat/internal/domain/chat"
)

// CreateChatRequest is used for POST /chats. The caller is always added to
// Users.
type CreateChatRequest struct {
	Users       []string `json:"users" binding:"required"`
	IsGroupChat bool     `json:"isGroupChat"`
	ChatName    string   `json:"chatName,omitempty"`
	ChatImage   string   `json:"chatImage,omitempty"`
}

func (r CreateChatRequest) Draft() chat.Draft {
	return chat.Draft{
		Users:       r.Users,
		IsGroupChat: r.IsGroupChat,
		ChatName:    r.ChatName,
		ChatImage:   r.ChatImage,
	}
}

type CreateChatResponse struct {
	ChatID string `json:"chatId"`
}

// UpdateChatRequest is used for PATCH /chats/:id. Membership changes go
// through the member routes.
type UpdateChatRequest struct {
	ChatName  *string `json:"chatName,omitempty"`
	ChatImage *string `json:"chatImage,omitempty"`
}

func (r UpdateChatRequest) Patch() chat.Patch {
	return chat.Patch{ChatName: r.ChatName, ChatImage: r.ChatImage}
}

type AddMembersRequest struct {
	Users []string `json:"users" binding:"required,min=1"`
}

type AddMembersResponse struct {
	Added []string `json:"added"`
}

type BlockedResponse struct {
	Blocked bool `json:"blocked"`
}

type ChatDTO struct {
	ChatID            string   `json:"chatId"`
	Users             []string `json:"users"`
	IsGroupChat       bool     `json:"isGroupChat"`
	ChatName          string   `json:"chatName,omitempty"`
	ChatImage         string   `json:"chatImage,omitempty"`
	CreatedBy         string   `json:"createdBy,omitempty"`
	UpdatedBy         string   `json:"updatedBy,omitempty"`
	CreatedAt         string   `json:"createdAt,omitempty"`
	UpdatedAt         string   `json:"updatedAt,omitempty"`
	LatestMessageText string   `json:"latestMessageText,omitempty"`
}

func NewChatDTO(c chat.Chat) ChatDTO {
	return ChatDTO{
		ChatID:            c.Key,
		Users:             c.Users,
		IsGroupChat:       c.IsGroupChat,
		ChatName:          c.ChatName,
		ChatImage:         c.ChatImage,
		CreatedBy:         c.CreatedBy,
		UpdatedBy:         c.UpdatedBy,
		CreatedAt:         formatTime(c.CreatedAt),
		UpdatedAt:         formatTime(c.UpdatedAt),
		LatestMessageText: c.LatestMessageText,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
