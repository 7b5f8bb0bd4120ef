package chat

import (
	"fmt"
	"strings"
	"time"

	relay_errors "relay-chat/pkg/errors"
)

// Draft is the caller supplied part of a new chat.
type Draft struct {
	Users       []string
	IsGroupChat bool
	ChatName    string
	ChatImage   string
}

// Normalize returns the member list with blanks and duplicates removed and
// the creator added when missing. Join order is kept.
func (d Draft) Normalize(creatorUID string) Draft {
	out := d
	out.Users = make([]string, 0, len(d.Users)+1)
	seen := map[string]struct{}{}
	add := func(uid string) {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			return
		}
		if _, ok := seen[uid]; ok {
			return
		}
		seen[uid] = struct{}{}
		out.Users = append(out.Users, uid)
	}
	for _, uid := range d.Users {
		add(uid)
	}
	add(creatorUID)
	out.ChatName = strings.TrimSpace(d.ChatName)
	return out
}

// Validate checks a normalized draft.
func (d Draft) Validate(creatorUID string) error {
	if creatorUID == "" {
		return fmt.Errorf("creator: %w", relay_errors.ErrInvalidInput)
	}
	if len(d.Users) == 0 {
		return fmt.Errorf("chat has no users: %w", relay_errors.ErrInvalidInput)
	}
	found := false
	for _, uid := range d.Users {
		if uid == creatorUID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("creator is not a member: %w", relay_errors.ErrInvalidInput)
	}
	if !d.IsGroupChat && len(d.Users) != 2 {
		return fmt.Errorf("direct chat needs exactly two users, got %d: %w", len(d.Users), relay_errors.ErrInvalidInput)
	}
	return nil
}

// Record is the metadata written for a new chat.
func (d Draft) Record(creatorUID string, now time.Time) map[string]any {
	stamp := FormatTime(now)
	rec := map[string]any{
		"users":       d.Users,
		"isGroupChat": d.IsGroupChat,
		"createdBy":   creatorUID,
		"updatedBy":   creatorUID,
		"createdAt":   stamp,
		"updatedAt":   stamp,
	}
	if d.ChatName != "" {
		rec["chatName"] = d.ChatName
	}
	if d.ChatImage != "" {
		rec["chatImage"] = d.ChatImage
	}
	return rec
}

// Patch is a partial metadata update.
type Patch struct {
	ChatName  *string
	ChatImage *string
	Users     []string
}

func (p Patch) Empty() bool {
	return p.ChatName == nil && p.ChatImage == nil && p.Users == nil
}

// Record merges the patch with the update stamp.
func (p Patch) Record(uid string, now time.Time) map[string]any {
	rec := map[string]any{
		"updatedAt": FormatTime(now),
		"updatedBy": uid,
	}
	if p.ChatName != nil {
		rec["chatName"] = strings.TrimSpace(*p.ChatName)
	}
	if p.ChatImage != nil {
		rec["chatImage"] = *p.ChatImage
	}
	if p.Users != nil {
		rec["users"] = p.Users
	}
	return rec
}
