package message

import (
	"fmt"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
)

const (
	TypeInfo = "info"

	// ImageText is the text stored for image messages.
	ImageText = "Image"
)

// Message is one entry under messages/{chatId}.
type Message struct {
	Key      string
	SentBy   string
	SentAt   time.Time
	Text     string
	ImageURL string
	ReplyTo  string
	Type     string
}

func (m Message) IsInfo() bool {
	return m.Type == TypeInfo
}

// ToRecord omits empty optional fields.
func (m Message) ToRecord() map[string]any {
	rec := map[string]any{
		"sentBy": m.SentBy,
		"sentAt": m.SentAt.UTC().Format(time.RFC3339Nano),
		"text":   m.Text,
	}
	if m.ReplyTo != "" {
		rec["replyTo"] = m.ReplyTo
	}
	if m.ImageURL != "" {
		rec["imageUrl"] = m.ImageURL
	}
	if m.Type != "" {
		rec["type"] = m.Type
	}
	return rec
}

func FromSnapshot(snap store.Snapshot) (Message, error) {
	if !snap.Exists() {
		return Message{}, fmt.Errorf("message %s: %w", snap.Key(), relay_errors.ErrNotFound)
	}
	m, ok := snap.Value.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w: not an object", snap.Key(), relay_errors.ErrMalformedRecord)
	}
	msg := Message{Key: snap.Key()}
	msg.SentBy, _ = m["sentBy"].(string)
	msg.Text, _ = m["text"].(string)
	msg.ImageURL, _ = m["imageUrl"].(string)
	msg.ReplyTo, _ = m["replyTo"].(string)
	msg.Type, _ = m["type"].(string)
	if msg.SentBy == "" {
		return Message{}, fmt.Errorf("message %s: %w: missing sentBy", snap.Key(), relay_errors.ErrMalformedRecord)
	}
	raw, _ := m["sentAt"].(string)
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Message{}, fmt.Errorf("message %s: %w: bad sentAt %q", snap.Key(), relay_errors.ErrMalformedRecord, raw)
	}
	msg.SentAt = ts
	return msg, nil
}

// Rejected records a child that failed validation.
type Rejected struct {
	Key string
	Err error
}

// ListFromSnapshot parses a messages/{chatId} snapshot in store order.
// Malformed children are left out of the list and returned separately.
func ListFromSnapshot(snap store.Snapshot) ([]Message, []Rejected) {
	children := snap.Children()
	msgs := make([]Message, 0, len(children))
	var rejected []Rejected
	for _, child := range children {
		msg, err := FromSnapshot(child)
		if err != nil {
			rejected = append(rejected, Rejected{Key: child.Key(), Err: err})
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, rejected
}
