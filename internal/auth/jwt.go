// Package auth authenticates bearer tokens. Production deployments verify
// Firebase ID tokens; the HMAC JWT verifier serves development and tests.
package auth

import (
	"context"
	"errors"
	"time"

	relay_errors "relay-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier turns a bearer token into the uid it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type JWTVerifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTVerifier(secret string, ttl time.Duration) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTVerifier{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, relay_errors.ErrUnauthorized
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", relay_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", relay_errors.ErrUnauthorized
	}
	return claims.Subject, nil
}

// Issue signs an access token for uid.
func (v *JWTVerifier) Issue(uid string) (string, error) {
	if uid == "" {
		return "", relay_errors.ErrInvalidInput
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
