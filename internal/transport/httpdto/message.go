package httpdto

import (
	"relay-chat/internal/domain/message"
)

// SendMessageRequest is used for POST /chats/:id/messages.
type SendMessageRequest struct {
	Text    string `json:"text" binding:"required"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// SendMessageResponse reports a blocked send as Blocked with no message id.
type SendMessageResponse struct {
	Blocked   bool   `json:"blocked"`
	MessageID string `json:"messageId,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type StarResponse struct {
	Starred bool `json:"starred"`
}

type MessageDTO struct {
	MessageID string `json:"messageId"`
	SentBy    string `json:"sentBy"`
	SentAt    string `json:"sentAt"`
	Text      string `json:"text"`
	ImageURL  string `json:"imageUrl,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
	Type      string `json:"type,omitempty"`
}

func NewMessageDTO(m message.Message) MessageDTO {
	return MessageDTO{
		MessageID: m.Key,
		SentBy:    m.SentBy,
		SentAt:    formatTime(m.SentAt),
		Text:      m.Text,
		ImageURL:  m.ImageURL,
		ReplyTo:   m.ReplyTo,
		Type:      m.Type,
	}
}

type StarDTO struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	StarredAt string `json:"starredAt"`
}
