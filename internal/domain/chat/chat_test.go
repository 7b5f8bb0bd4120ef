package chat

import (
	"testing"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSnapshotAcceptsListAndMapMembers(t *testing.T) {
	tests := []struct {
		name  string
		users any
	}{
		{"list", []any{"a1", "b1"}},
		{"index map", map[string]any{"0": "a1", "1": "b1"}},
		{"duplicate", map[string]any{"0": "a1", "1": "b1", "2": "a1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := store.Normalize(map[string]any{
				"users":     tt.users,
				"createdBy": "a1",
				"updatedAt": "2024-03-01T10:00:00Z",
			})
			require.NoError(t, err)

			c, err := FromSnapshot(store.Snapshot{Path: "chats/K1", Value: value})
			require.NoError(t, err)
			assert.Equal(t, "K1", c.Key)
			assert.Equal(t, []string{"a1", "b1"}, c.Users)
			assert.True(t, c.UpdatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)), "UpdatedAt = %v", c.UpdatedAt)
		})
	}
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  error
	}{
		{"missing", nil, relay_errors.ErrNotFound},
		{"scalar", "oops", relay_errors.ErrMalformedRecord},
		{"no users", map[string]any{"chatName": "x"}, relay_errors.ErrMalformedRecord},
		{"numeric member", map[string]any{"users": map[string]any{"0": float64(4)}}, relay_errors.ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSnapshot(store.Snapshot{Path: "chats/K1", Value: tt.value})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDraftNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
		users   []string
	}{
		{"direct", Draft{Users: []string{"a1", "b1"}}, false, []string{"a1", "b1"}},
		{"creator added", Draft{Users: []string{"b1"}}, false, []string{"b1", "a1"}},
		{"duplicates dropped", Draft{Users: []string{"a1", "b1", "b1", " "}}, false, []string{"a1", "b1"}},
		{"direct with three", Draft{Users: []string{"a1", "b1", "c1"}}, true, nil},
		{"group with three", Draft{Users: []string{"a1", "b1", "c1"}, IsGroupChat: true}, false, []string{"a1", "b1", "c1"}},
		{"alone", Draft{}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft.Normalize("a1")
			err := d.Validate("a1")
			if tt.wantErr {
				assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.users, d.Users)
		})
	}
}

func TestSameMembers(t *testing.T) {
	c := Chat{Users: []string{"a1", "b1"}}
	assert.True(t, c.SameMembers([]string{"b1", "a1"}))
	assert.False(t, c.SameMembers([]string{"a1", "c1"}))
	assert.False(t, c.SameMembers([]string{"a1"}))
}
