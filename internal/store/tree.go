package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	relay_errors "relay-chat/pkg/errors"
)

// Normalize converts an arbitrary Go value into the tree model used by every
// store: maps keyed by string, strings, float64 numbers and bools. Lists become
// maps keyed by index, nil leaves and empty maps are dropped, and a value that
// prunes to nothing normalizes to nil.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relay_errors.ErrInvalidInput, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", relay_errors.ErrInvalidInput, err)
	}
	return prune(out), nil
}

func prune(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if p := prune(child); p == nil {
				delete(v, k)
			} else {
				v[k] = p
			}
		}
		if len(v) == 0 {
			return nil
		}
		return v
	case []any:
		m := make(map[string]any, len(v))
		for i, child := range v {
			if p := prune(child); p != nil {
				m[strconv.Itoa(i)] = p
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return v
	}
}

// GetIn returns the node at segs below root, or nil.
func GetIn(root any, segs []string) any {
	node := root
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// SetIn stores value at segs below root and returns the new root. Maps along
// the way are modified in place; ancestors left empty are removed. value must
// already be normalized.
func SetIn(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = map[string]any{}
	}
	child := SetIn(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Clone deep copies a normalized tree.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = Clone(child)
		}
		return out
	default:
		return v
	}
}

func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
