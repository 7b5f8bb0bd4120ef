package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RELAY_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg := LoadConfig()
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "https://exp.host/--/api/v2/push/send", cfg.ExpoPushURL)
	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, time.Second, cfg.FirebasePollInterval)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "STORE_DRIVER=Redis\nREDIS_PORT=6400\nMESSAGE_RATE_LIMIT=5\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv("RELAY_ENV_FILE", envFile)
	t.Setenv("REDIS_PORT", "7000")
	// godotenv.Load sets variables for the whole process; clear them afterwards.
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("MESSAGE_RATE_LIMIT")
	})

	cfg := LoadConfig()
	assert.Equal(t, StoreRedis, cfg.StoreDriver)
	assert.Equal(t, "7000", cfg.RedisPort, "environment wins over the file")
	assert.Equal(t, 5, cfg.MessageRateLimit)
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PUSH_TIMEOUT_SEC", "soon")
	assert.Equal(t, 3, getEnvAsInt("PUSH_TIMEOUT_SEC", 3))
}

func TestBackendSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		redis    bool
		firebase bool
	}{
		{"memory only", Config{StoreDriver: StoreMemory, AuthProvider: AuthJWT}, false, false},
		{"redis store", Config{StoreDriver: StoreRedis, AuthProvider: AuthJWT}, true, false},
		{"redis for limits", Config{StoreDriver: StoreMemory, RedisEnabled: true}, true, false},
		{"firebase store", Config{StoreDriver: StoreFirebase}, false, true},
		{"firebase auth", Config{StoreDriver: StoreRedis, AuthProvider: AuthFirebase}, true, true},
		{"fcm only", Config{StoreDriver: StoreMemory, FirebaseDatabaseURL: "https://x.firebaseio.com"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.redis, tt.cfg.UsesRedis(), "UsesRedis")
			assert.Equal(t, tt.firebase, tt.cfg.UsesFirebase(), "UsesFirebase")
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	assert.True(t, getEnvAsBool("REDIS_ENABLED", false))
	t.Setenv("REDIS_ENABLED", "maybe")
	assert.False(t, getEnvAsBool("REDIS_ENABLED", false), "garbage should fall back")
}
