package services

import (
	"context"
	"errors"

	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, relay_errors.ErrInvalidInput), errors.Is(err, relay_errors.ErrInvalidPath):
		return 400
	case errors.Is(err, relay_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, relay_errors.ErrForbidden):
		return 403
	case errors.Is(err, relay_errors.ErrNotFound):
		return 404
	case errors.Is(err, relay_errors.ErrAlreadyExists), errors.Is(err, relay_errors.ErrConflict):
		return 409
	case errors.Is(err, relay_errors.ErrTooLarge):
		return 413
	case errors.Is(err, relay_errors.ErrMalformedRecord):
		return 422
	case errors.Is(err, relay_errors.ErrRateLimited):
		return 429
	case errors.Is(err, relay_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

// ErrorCode is the machine readable code sent alongside HTTPStatus.
func ErrorCode(err error) string {
	switch HTTPStatus(err) {
	case 400:
		return "INVALID_REQUEST"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 413:
		return "TOO_LARGE"
	case 422:
		return "MALFORMED_RECORD"
	case 429:
		return "RATE_LIMITED"
	case 503:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"

// WithUserContext records the authenticated uid on ctx, for handlers and for
// log fields.
func WithUserContext(ctx context.Context, uid string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, uid)
	return context.WithValue(ctx, logger.UserIdKey, uid)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}
