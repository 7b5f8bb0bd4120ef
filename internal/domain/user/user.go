package user

import (
	"fmt"
	"strings"
	"time"

	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
)

// User is the profile record stored at users/{uid}.
type User struct {
	UID        string
	FirstName  string
	LastName   string
	Email      string
	Username   string
	About      string
	PhotoURL   string
	PushTokens []PushToken
	SignUpDate time.Time
}

// PushToken is one device token entry. Key is the entry's key under
// users/{uid}/pushTokens.
type PushToken struct {
	Key   string
	Token string
}

// Username derives the search key for a name pair.
func Username(firstName, lastName string) string {
	return strings.ToLower(firstName + " " + lastName)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Tokens returns the registered device tokens in entry order.
func (u User) Tokens() []string {
	out := make([]string, 0, len(u.PushTokens))
	for _, t := range u.PushTokens {
		out = append(out, t.Token)
	}
	return out
}

// ToRecord is the map written to the store on sign-up.
func (u User) ToRecord() map[string]any {
	rec := map[string]any{
		"uid":        u.UID,
		"firstName":  u.FirstName,
		"lastName":   u.LastName,
		"email":      u.Email,
		"username":   Username(u.FirstName, u.LastName),
		"signUpDate": u.SignUpDate.UTC().Format(time.RFC3339Nano),
	}
	if u.About != "" {
		rec["about"] = u.About
	}
	if u.PhotoURL != "" {
		rec["photo_url"] = u.PhotoURL
	}
	return rec
}

// FromSnapshot validates a users/{uid} snapshot. Records without a first
// name are rejected; the uid falls back to the snapshot key.
func FromSnapshot(snap store.Snapshot) (User, error) {
	if !snap.Exists() {
		return User{}, fmt.Errorf("user %s: %w", snap.Key(), relay_errors.ErrNotFound)
	}
	m, ok := snap.Value.(map[string]any)
	if !ok {
		return User{}, fmt.Errorf("user %s: %w: not an object", snap.Key(), relay_errors.ErrMalformedRecord)
	}

	u := User{
		UID:       stringField(m, "uid"),
		FirstName: stringField(m, "firstName"),
		LastName:  stringField(m, "lastName"),
		Email:     stringField(m, "email"),
		Username:  stringField(m, "username"),
		About:     stringField(m, "about"),
		PhotoURL:  stringField(m, "photo_url"),
	}
	if u.UID == "" {
		u.UID = snap.Key()
	}
	if u.FirstName == "" {
		return User{}, fmt.Errorf("user %s: %w: missing firstName", snap.Key(), relay_errors.ErrMalformedRecord)
	}
	if u.Username == "" {
		u.Username = Username(u.FirstName, u.LastName)
	}
	if raw := stringField(m, "signUpDate"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			u.SignUpDate = ts
		}
	}
	u.PushTokens = TokensFromSnapshot(snap.Child("pushTokens"))
	return u, nil
}

// TokensFromSnapshot reads a pushTokens node. Non-string entries are skipped.
func TokensFromSnapshot(snap store.Snapshot) []PushToken {
	var out []PushToken
	for _, child := range snap.Children() {
		token, ok := child.Value.(string)
		if !ok || token == "" {
			continue
		}
		out = append(out, PushToken{Key: child.Key(), Token: token})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
