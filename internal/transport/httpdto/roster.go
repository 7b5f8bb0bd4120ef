package httpdto

import (
	"relay-chat/internal/roster"
)

// RosterDTO is the payload of a roster frame. Chats are ordered by most
// recent update. A null user is a participant whose profile has not
// resolved.
type RosterDTO struct {
	Chats      []RosterChatDTO               `json:"chats"`
	Users      map[string]*UserDTO           `json:"users"`
	Starred    map[string]map[string]StarDTO `json:"starred"`
	Loaded     bool                          `json:"loaded"`
	ChatsFound int                           `json:"chatsFound"`
}

type RosterChatDTO struct {
	ChatDTO
	Renderable bool         `json:"renderable"`
	Messages   []MessageDTO `json:"messages"`
}

func NewRosterDTO(p roster.Projection) RosterDTO {
	out := RosterDTO{
		Chats:      []RosterChatDTO{},
		Users:      make(map[string]*UserDTO, len(p.Users)),
		Starred:    make(map[string]map[string]StarDTO, len(p.Starred)),
		Loaded:     p.Loaded,
		ChatsFound: p.Found,
	}
	for _, c := range p.Sorted() {
		msgs := make([]MessageDTO, 0, len(p.Messages[c.Key]))
		for _, m := range p.Messages[c.Key] {
			msgs = append(msgs, NewMessageDTO(m))
		}
		out.Chats = append(out.Chats, RosterChatDTO{
			ChatDTO:    NewChatDTO(c),
			Renderable: p.Renderable(c.Key),
			Messages:   msgs,
		})
	}
	for uid, u := range p.Users {
		if u == nil {
			out.Users[uid] = nil
			continue
		}
		dto := NewUserDTO(*u)
		out.Users[uid] = &dto
	}
	for chatID, stars := range p.Starred {
		m := make(map[string]StarDTO, len(stars))
		for id, s := range stars {
			m[id] = StarDTO{MessageID: s.MessageID, ChatID: s.ChatID, StarredAt: formatTime(s.StarredAt)}
		}
		out.Starred[chatID] = m
	}
	return out
}
