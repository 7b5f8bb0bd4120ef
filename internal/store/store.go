// Package store is the realtime store adapter. Values are JSON trees addressed
// by slash separated paths; subscribers receive the current value at their
// path followed by one callback per change, in write order for that path.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	relay_errors "relay-chat/pkg/errors"
)

// Listener receives snapshots for a subscription. A non-nil err reports a
// subscription failure; snap is then the zero value.
type Listener func(snap Snapshot, err error)

// Handle identifies an open subscription.
type Handle struct {
	ID   uint64
	Path string
}

type Store interface {
	Subscribe(ctx context.Context, path string, listener Listener) (Handle, error)
	Unsubscribe(h Handle) error
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, values map[string]any) error
	Remove(ctx context.Context, path string) error
	Push(ctx context.Context, path string, value any) (string, error)
}

// Snapshot is an immutable view of the value at Path. A nil Value means
// nothing is stored there.
type Snapshot struct {
	Path  string
	Value any
}

func (s Snapshot) Key() string {
	return LastSegment(s.Path)
}

func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Decode converts the value into v through its JSON representation.
func (s Snapshot) Decode(v any) error {
	if s.Value == nil {
		return fmt.Errorf("%s: %w", s.Path, relay_errors.ErrNotFound)
	}
	raw, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w: %v", s.Path, relay_errors.ErrMalformedRecord, err)
	}
	return nil
}

// Child returns the snapshot one level below s.
func (s Snapshot) Child(key string) Snapshot {
	path := Join(s.Path, key)
	m, ok := s.Value.(map[string]any)
	if !ok {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Value: m[key]}
}

// Children lists the direct children in key order. Integer keys come first
// in numeric order, then the remaining keys lexicographically, so push keys
// iterate in insertion order.
func (s Snapshot) Children() []Snapshot {
	m, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortKeys(keys)
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, Snapshot{Path: Join(s.Path, k), Value: m[k]})
	}
	return out
}

func (s Snapshot) String() string {
	if s.Value == nil {
		return "null"
	}
	raw, err := json.Marshal(s.Value)
	if err != nil {
		return fmt.Sprintf("%v", s.Value)
	}
	return string(raw)
}

func SortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})
}

func keyLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}
