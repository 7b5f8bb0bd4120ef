package commands

import (
	"fmt"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/domain/user"
	relay_errors "relay-chat/pkg/errors"
)

const (
	TypeCreateChat   = "chat.create"
	TypeUpdateChat   = "chat.update"
	TypeAddMembers   = "chat.members.add"
	TypeRemoveMember = "chat.members.remove"
)

type CreateChatCommand struct {
	CreatorUID string
	Draft      chat.Draft
}

func (CreateChatCommand) CommandType() string { return TypeCreateChat }

// Normalized returns the draft with the creator included and the member
// list deduplicated.
func (c CreateChatCommand) Normalized() chat.Draft {
	return c.Draft.Normalize(c.CreatorUID)
}

func (c CreateChatCommand) Validate() error {
	if c.CreatorUID == "" {
		return fmt.Errorf("creator: %w", relay_errors.ErrInvalidInput)
	}
	return c.Normalized().Validate(c.CreatorUID)
}

type UpdateChatCommand struct {
	ChatID string
	UID    string
	Patch  chat.Patch
}

func (UpdateChatCommand) CommandType() string { return TypeUpdateChat }

func (c UpdateChatCommand) Validate() error {
	if c.ChatID == "" || c.UID == "" {
		return relay_errors.ErrInvalidInput
	}
	if c.Patch.Users != nil && len(c.Patch.Users) == 0 {
		return fmt.Errorf("chat users cannot be empty: %w", relay_errors.ErrInvalidInput)
	}
	return nil
}

// AddMembersCommand adds the candidates that are not members of Chat yet.
type AddMembersCommand struct {
	Actor      user.User
	Candidates []user.User
	Chat       chat.Chat
}

func (AddMembersCommand) CommandType() string { return TypeAddMembers }

func (c AddMembersCommand) Validate() error {
	if c.Actor.UID == "" || c.Chat.Key == "" {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

// RemoveMemberCommand drops Target from Chat. Actor equal to Target means
// leaving.
type RemoveMemberCommand struct {
	Actor  user.User
	Target user.User
	Chat   chat.Chat
}

func (RemoveMemberCommand) CommandType() string { return TypeRemoveMember }

func (c RemoveMemberCommand) Validate() error {
	if c.Actor.UID == "" || c.Target.UID == "" || c.Chat.Key == "" {
		return relay_errors.ErrInvalidInput
	}
	if !c.Chat.HasMember(c.Target.UID) {
		return fmt.Errorf("%s is not a member of %s: %w", c.Target.UID, c.Chat.Key, relay_errors.ErrNotFound)
	}
	if len(c.Chat.Others(c.Target.UID)) == 0 {
		return fmt.Errorf("cannot remove the last member of %s: %w", c.Chat.Key, relay_errors.ErrInvalidInput)
	}
	return nil
}
