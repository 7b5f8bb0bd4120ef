// Package firebase connects the service to a Firebase project: the Realtime
// Database as store, ID token verification and Cloud Messaging.
package firebase

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

type Config struct {
	DatabaseURL     string
	CredentialsFile string
}

// NewApp initializes the Admin SDK. Without a credentials file the SDK falls
// back to Application Default Credentials.
func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase database url is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}
