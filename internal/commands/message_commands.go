package commands

import (
	"fmt"
	"strings"

	"relay-chat/internal/domain/user"
	relay_errors "relay-chat/pkg/errors"
)

const (
	TypeSendText    = "message.send_text"
	TypeSendImage   = "message.send_image"
	TypeSendInfo    = "message.send_info"
	TypeStarMessage = "message.star"
)

type SendTextCommand struct {
	ChatID       string
	Sender       user.User
	Text         string
	ReplyTo      string
	Participants []string
}

func (SendTextCommand) CommandType() string { return TypeSendText }

func (c SendTextCommand) Validate() error {
	if c.ChatID == "" || c.Sender.UID == "" {
		return relay_errors.ErrInvalidInput
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("message text: %w", relay_errors.ErrInvalidInput)
	}
	return nil
}

type SendImageCommand struct {
	ChatID       string
	Sender       user.User
	ImageURL     string
	ReplyTo      string
	Participants []string
}

func (SendImageCommand) CommandType() string { return TypeSendImage }

func (c SendImageCommand) Validate() error {
	if c.ChatID == "" || c.Sender.UID == "" {
		return relay_errors.ErrInvalidInput
	}
	if strings.TrimSpace(c.ImageURL) == "" {
		return fmt.Errorf("image url: %w", relay_errors.ErrInvalidInput)
	}
	return nil
}

// SendInfoCommand posts a system message. It is never blocked and sends no
// notification.
type SendInfoCommand struct {
	ChatID    string
	SenderUID string
	Text      string
}

func (SendInfoCommand) CommandType() string { return TypeSendInfo }

func (c SendInfoCommand) Validate() error {
	if c.ChatID == "" || c.SenderUID == "" || c.Text == "" {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

type StarMessageCommand struct {
	MessageID string
	ChatID    string
	UID       string
}

func (StarMessageCommand) CommandType() string { return TypeStarMessage }

func (c StarMessageCommand) Validate() error {
	if c.MessageID == "" || c.ChatID == "" || c.UID == "" {
		return relay_errors.ErrInvalidInput
	}
	return nil
}
