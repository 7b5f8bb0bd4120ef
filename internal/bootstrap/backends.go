// Package bootstrap opens the backends selected by configuration. Both
// binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"relay-chat/config"
	"relay-chat/internal/auth"
	"relay-chat/internal/firebase"
	"relay-chat/internal/notify"
	"relay-chat/internal/redis"
	"relay-chat/internal/store"
	"relay-chat/pkg/logger"

	firebaseapp "firebase.google.com/go/v4"
	goredis "github.com/redis/go-redis/v9"
)

// Backends holds the open connections. Redis and Firebase are nil unless
// configuration asks for them.
type Backends struct {
	Store    store.Store
	Redis    *goredis.Client
	Firebase *firebaseapp.App

	closers []func()
}

func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backends, error) {
	b := &Backends{}

	if cfg.UsesRedis() {
		redis.Initialize(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		client := redis.GetClient()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redis.Ping(pingCtx, client)
		cancel()
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	if cfg.UsesFirebase() {
		app, err := firebase.NewApp(ctx, firebase.Config{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Firebase = app
	}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		st := store.NewMemoryStore()
		b.Store = st
		b.closers = append(b.closers, st.Close)
	case config.StoreRedis:
		st := redis.NewStore(b.Redis, log)
		b.Store = st
		b.closers = append(b.closers, st.Close)
	case config.StoreFirebase:
		client, err := b.Firebase.Database(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("firebase database: %w", err)
		}
		st := firebase.NewStore(firebase.NewDatabase(client), cfg.FirebasePollInterval, log)
		b.Store = st
		b.closers = append(b.closers, st.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return b, nil
}

// Verifier returns the token verifier for the configured auth provider.
func (b *Backends) Verifier(ctx context.Context, cfg *config.Config) (auth.TokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthJWT:
		return auth.NewJWTVerifier(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	case config.AuthFirebase:
		client, err := b.Firebase.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth: %w", err)
		}
		return firebase.NewTokenVerifier(client), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

// PushSender routes Expo tokens to Expo and, when Firebase is configured,
// native tokens to FCM.
func (b *Backends) PushSender(ctx context.Context, cfg *config.Config) (notify.Sender, error) {
	router := notify.Router{Expo: notify.NewExpoSender(cfg.ExpoPushURL, nil)}
	if b.Firebase != nil {
		client, err := b.Firebase.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase messaging: %w", err)
		}
		router.FCM = notify.NewFCMSender(client)
	}
	return router, nil
}

// Health checks the connections that can go away.
func (b *Backends) Health(ctx context.Context) error {
	if b.Redis != nil {
		return redis.Ping(ctx, b.Redis)
	}
	return nil
}

// Close releases everything in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
