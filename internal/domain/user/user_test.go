package user

import (
	"testing"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsername(t *testing.T) {
	assert.Equal(t, "ada lovelace", Username("Ada", "LoveLace"))
}

func TestPatchRecordRecomputesUsername(t *testing.T) {
	current := User{FirstName: "Ada", LastName: "Lovelace"}
	first := "Grace"
	last := "Hopper"
	about := "hi"

	tests := []struct {
		name  string
		patch Patch
		want  any
	}{
		{"first only", Patch{FirstName: &first}, "grace lovelace"},
		{"last only", Patch{LastName: &last}, "ada hopper"},
		{"both", Patch{FirstName: &first, LastName: &last}, "grace hopper"},
		{"neither", Patch{About: &about}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.patch.Record(current)
			assert.Equal(t, tt.want, rec["username"])
		})
	}
}

func TestFromSnapshot(t *testing.T) {
	value, err := store.Normalize(map[string]any{
		"firstName":  "Ada",
		"lastName":   "Lovelace",
		"email":      "ada@example.com",
		"pushTokens": []string{"ExponentPushToken[a]", "ExponentPushToken[b]"},
	})
	require.NoError(t, err)

	u, err := FromSnapshot(store.Snapshot{Path: "users/u1", Value: value})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UID)
	assert.Equal(t, "ada lovelace", u.Username)
	assert.Equal(t, []string{"ExponentPushToken[a]", "ExponentPushToken[b]"}, u.Tokens())

	_, err = FromSnapshot(store.Snapshot{Path: "users/u2", Value: map[string]any{"lastName": "x"}})
	assert.ErrorIs(t, err, relay_errors.ErrMalformedRecord)
}
