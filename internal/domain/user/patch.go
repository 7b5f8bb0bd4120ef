package user

import (
	"fmt"
	"strings"

	relay_errors "relay-chat/pkg/errors"
)

// Patch is a partial profile update. Nil fields are left untouched.
type Patch struct {
	FirstName *string
	LastName  *string
	About     *string
	PhotoURL  *string
}

func (p Patch) TouchesName() bool {
	return p.FirstName != nil || p.LastName != nil
}

func (p Patch) Validate() error {
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return fmt.Errorf("first name: %w", relay_errors.ErrInvalidInput)
	}
	if p.LastName != nil && strings.TrimSpace(*p.LastName) == "" {
		return fmt.Errorf("last name: %w", relay_errors.ErrInvalidInput)
	}
	return nil
}

// Record builds the update map for the patch against the current profile.
// The username is rewritten whenever either name changes.
func (p Patch) Record(current User) map[string]any {
	rec := map[string]any{}
	first, last := current.FirstName, current.LastName
	if p.FirstName != nil {
		first = strings.TrimSpace(*p.FirstName)
		rec["firstName"] = first
	}
	if p.LastName != nil {
		last = strings.TrimSpace(*p.LastName)
		rec["lastName"] = last
	}
	if p.TouchesName() {
		rec["username"] = Username(first, last)
	}
	if p.About != nil {
		rec["about"] = *p.About
	}
	if p.PhotoURL != nil {
		rec["photo_url"] = *p.PhotoURL
	}
	return rec
}
