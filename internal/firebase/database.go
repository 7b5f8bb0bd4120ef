package firebase

import (
	"context"

	"firebase.google.com/go/v4/db"
)

// Database is the path addressed subset of the Realtime Database used by
// Store.
type Database interface {
	Get(ctx context.Context, path string) (any, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, values map[string]any) error
	Delete(ctx context.Context, path string) error
	Push(ctx context.Context, path string, value any) (string, error)
}

type rtdb struct {
	client *db.Client
}

// NewDatabase adapts an Admin SDK database client.
func NewDatabase(client *db.Client) Database {
	return &rtdb{client: client}
}

func (r *rtdb) Get(ctx context.Context, path string) (any, error) {
	var v any
	if err := r.client.NewRef(path).Get(ctx, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *rtdb) Set(ctx context.Context, path string, value any) error {
	return r.client.NewRef(path).Set(ctx, value)
}

func (r *rtdb) Update(ctx context.Context, path string, values map[string]any) error {
	return r.client.NewRef(path).Update(ctx, values)
}

func (r *rtdb) Delete(ctx context.Context, path string) error {
	return r.client.NewRef(path).Delete(ctx)
}

func (r *rtdb) Push(ctx context.Context, path string, value any) (string, error) {
	ref, err := r.client.NewRef(path).Push(ctx, value)
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}
