package message

import (
	"time"

	"relay-chat/internal/store"
)

// Star is a starred message record at
// userStarredMessages/{uid}/{chatId}/{messageId}.
type Star struct {
	MessageID string
	ChatID    string
	StarredAt time.Time
}

func (s Star) ToRecord() map[string]any {
	return map[string]any{
		"messageId": s.MessageID,
		"chatId":    s.ChatID,
		"starredAt": s.StarredAt.UTC().Format(time.RFC3339Nano),
	}
}

// StarsFromSnapshot reads a userStarredMessages/{uid} snapshot into
// chatId -> messageId -> Star. Entries that are not objects are skipped.
func StarsFromSnapshot(snap store.Snapshot) map[string]map[string]Star {
	out := make(map[string]map[string]Star)
	for _, chatNode := range snap.Children() {
		for _, msgNode := range chatNode.Children() {
			m, ok := msgNode.Value.(map[string]any)
			if !ok {
				continue
			}
			star := Star{MessageID: msgNode.Key(), ChatID: chatNode.Key()}
			if raw, ok := m["starredAt"].(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					star.StarredAt = ts
				}
			}
			if out[chatNode.Key()] == nil {
				out[chatNode.Key()] = make(map[string]Star)
			}
			out[chatNode.Key()][msgNode.Key()] = star
		}
	}
	return out
}
