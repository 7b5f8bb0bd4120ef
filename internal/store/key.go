package store

import (
	"github.com/google/uuid"
)

// NewPushKey returns a unique key that sorts after every key generated
// before it in this process.
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
