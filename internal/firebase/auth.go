package firebase

import (
	"context"
	"fmt"

	relay_errors "relay-chat/pkg/errors"

	"firebase.google.com/go/v4/auth"
)

// IDTokenVerifier is the part of the Admin SDK auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// TokenVerifier authenticates Firebase ID tokens issued to the mobile
// clients.
type TokenVerifier struct {
	client IDTokenVerifier
}

func NewTokenVerifier(client IDTokenVerifier) *TokenVerifier {
	return &TokenVerifier{client: client}
}

// Verify returns the uid of a valid ID token.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", relay_errors.ErrUnauthorized
	}
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", relay_errors.ErrUnauthorized, err)
	}
	if t.UID == "" {
		return "", relay_errors.ErrUnauthorized
	}
	return t.UID, nil
}
