package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope carries one committed document write. Payload holds the whole
// document after the write, or null when it was removed. Version increases
// by one with every write of the same document.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Version       int64           `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewDocumentEnvelope(collection, id string, version int64, doc any, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	eventType := EventTypeDocumentChanged
	if doc == nil {
		eventType = EventTypeDocumentRemoved
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: collection,
		AggregateID:   id,
		Version:       version,
		OccurredAt:    at.UTC(),
		Payload:       payload,
	}, nil
}

// Document decodes the payload into the generic tree form.
func (e Envelope) Document() (any, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(e.Payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", e.AggregateType, e.AggregateID, err)
	}
	return doc, nil
}

func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
