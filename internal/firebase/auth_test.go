package firebase

import (
	"context"
	"errors"
	"testing"

	relay_errors "relay-chat/pkg/errors"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
)

type fakeIDTokens struct {
	tokens map[string]string
}

func (f fakeIDTokens) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	uid, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("ID token has expired")
	}
	return &auth.Token{UID: uid}, nil
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier(fakeIDTokens{tokens: map[string]string{"good": "u1", "anon": ""}})

	tests := []struct {
		token   string
		wantUID string
		wantErr bool
	}{
		{"good", "u1", false},
		{"expired", "", true},
		{"anon", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		uid, err := v.Verify(context.Background(), tt.token)
		if tt.wantErr {
			assert.ErrorIs(t, err, relay_errors.ErrUnauthorized, "Verify(%q)", tt.token)
			continue
		}
		assert.NoError(t, err, "Verify(%q)", tt.token)
		assert.Equal(t, tt.wantUID, uid)
	}
}
