package roster

import (
	"sort"

	"relay-chat/internal/domain/chat"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"
)

// Projection is the derived roster of one signed-in user.
type Projection struct {
	// Chats holds the chats the user is a member of, keyed by store key.
	Chats map[string]chat.Chat `json:"chats"`

	// Users holds participant profiles. A nil entry is a profile that is
	// subscribed but not resolved yet, or missing from the store.
	Users map[string]*user.User `json:"users"`

	Messages map[string][]message.Message       `json:"messages"`
	Starred  map[string]map[string]message.Star `json:"starred"`
	Loaded   bool                               `json:"loaded"`
	Found    int                                `json:"chatsFound"`
}

func newProjection() Projection {
	return Projection{
		Chats:    map[string]chat.Chat{},
		Users:    map[string]*user.User{},
		Messages: map[string][]message.Message{},
		Starred:  map[string]map[string]message.Star{},
	}
}

func (p Projection) clone() Projection {
	out := newProjection()
	out.Loaded = p.Loaded
	out.Found = p.Found
	for k, c := range p.Chats {
		c.Users = append([]string(nil), c.Users...)
		out.Chats[k] = c
	}
	for k, u := range p.Users {
		if u == nil {
			out.Users[k] = nil
			continue
		}
		cp := *u
		cp.PushTokens = append([]user.PushToken(nil), u.PushTokens...)
		out.Users[k] = &cp
	}
	for k, msgs := range p.Messages {
		out.Messages[k] = append([]message.Message(nil), msgs...)
	}
	for chatID, stars := range p.Starred {
		m := make(map[string]message.Star, len(stars))
		for id, s := range stars {
			m[id] = s
		}
		out.Starred[chatID] = m
	}
	return out
}

// Renderable reports whether the chat is present and every participant
// profile is resolved.
func (p Projection) Renderable(chatID string) bool {
	c, ok := p.Chats[chatID]
	if !ok {
		return false
	}
	for _, uid := range c.Users {
		if u, ok := p.Users[uid]; !ok || u == nil {
			return false
		}
	}
	return true
}

// Sorted returns the chats, most recently updated first.
func (p Projection) Sorted() []chat.Chat {
	out := make([]chat.Chat, 0, len(p.Chats))
	for _, c := range p.Chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DirectChat returns the existing one to one chat between self and other.
func (p Projection) DirectChat(self, other string) (chat.Chat, bool) {
	for _, c := range p.Sorted() {
		if !c.IsGroupChat && c.SameMembers([]string{self, other}) {
			return c, true
		}
	}
	return chat.Chat{}, false
}
