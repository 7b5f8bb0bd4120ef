package chat

import (
	"fmt"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
)

// Chat is the metadata record stored at chats/{key}.
type Chat struct {
	Key               string
	Users             []string
	IsGroupChat       bool
	ChatName          string
	ChatImage         string
	CreatedBy         string
	UpdatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LatestMessageText string
}

func (c Chat) HasMember(uid string) bool {
	for _, u := range c.Users {
		if u == uid {
			return true
		}
	}
	return false
}

// Others returns the members other than uid, in join order.
func (c Chat) Others(uid string) []string {
	out := make([]string, 0, len(c.Users))
	for _, u := range c.Users {
		if u != uid {
			out = append(out, u)
		}
	}
	return out
}

// SameMembers reports whether the chat's member set equals uids, ignoring
// order and duplicates.
func (c Chat) SameMembers(uids []string) bool {
	want := make(map[string]struct{}, len(uids))
	for _, u := range uids {
		want[u] = struct{}{}
	}
	have := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		have[u] = struct{}{}
	}
	if len(want) != len(have) {
		return false
	}
	for u := range want {
		if _, ok := have[u]; !ok {
			return false
		}
	}
	return true
}

// IsDirect reports whether this is a one to one chat.
func (c Chat) IsDirect() bool {
	return !c.IsGroupChat && len(c.Users) == 2
}

// FromSnapshot validates a chats/{key} snapshot. The member list may be
// stored either as a list or as an index-keyed object.
func FromSnapshot(snap store.Snapshot) (Chat, error) {
	if !snap.Exists() {
		return Chat{}, fmt.Errorf("chat %s: %w", snap.Key(), relay_errors.ErrNotFound)
	}
	m, ok := snap.Value.(map[string]any)
	if !ok {
		return Chat{}, fmt.Errorf("chat %s: %w: not an object", snap.Key(), relay_errors.ErrMalformedRecord)
	}

	c := Chat{
		Key:               snap.Key(),
		ChatName:          stringField(m, "chatName"),
		ChatImage:         stringField(m, "chatImage"),
		CreatedBy:         stringField(m, "createdBy"),
		UpdatedBy:         stringField(m, "updatedBy"),
		LatestMessageText: stringField(m, "latestMessageText"),
		CreatedAt:         timeField(m, "createdAt"),
		UpdatedAt:         timeField(m, "updatedAt"),
	}
	c.IsGroupChat, _ = m["isGroupChat"].(bool)

	users, err := membersFrom(snap.Child("users"))
	if err != nil {
		return Chat{}, fmt.Errorf("chat %s: %w", snap.Key(), err)
	}
	c.Users = users
	return c, nil
}

func membersFrom(snap store.Snapshot) ([]string, error) {
	children := snap.Children()
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: no users", relay_errors.ErrMalformedRecord)
	}
	seen := make(map[string]struct{}, len(children))
	users := make([]string, 0, len(children))
	for _, child := range children {
		uid, ok := child.Value.(string)
		if !ok || uid == "" {
			return nil, fmt.Errorf("%w: bad member entry %s", relay_errors.ErrMalformedRecord, child.Key())
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		users = append(users, uid)
	}
	return users, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func timeField(m map[string]any, key string) time.Time {
	raw, _ := m[key].(string)
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
