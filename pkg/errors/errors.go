package relay_errors

import (
	"errors"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTooLarge           = errors.New("file too large")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Store errors
var (
	ErrInvalidPath     = errors.New("invalid store path")
	ErrMalformedRecord = errors.New("malformed record")
	ErrStoreClosed     = errors.New("store closed")
)
