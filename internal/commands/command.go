package commands

import (
	"context"
	"fmt"

	relay_errors "relay-chat/pkg/errors"
)

// Command is a validated request to change chat state.
type Command interface {
	CommandType() string
	Validate() error
}

type Result struct {
	AggregateID string
	Payload     any
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// Typed adapts a handler for one concrete command type.
func Typed[T Command](fn func(ctx context.Context, cmd T) (Result, error)) Handler {
	return HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		typed, ok := cmd.(T)
		if !ok {
			return Result{}, fmt.Errorf("%s: unexpected %T: %w", cmd.CommandType(), cmd, relay_errors.ErrInvalidInput)
		}
		return fn(ctx, typed)
	})
}
