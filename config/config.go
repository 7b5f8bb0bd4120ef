package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreFirebase = "firebase"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	AppPort string
	AppMode string

	StoreDriver string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	FirebaseDatabaseURL     string
	FirebaseCredentialsFile string
	FirebasePollInterval    time.Duration

	AuthProvider string
	JWTSecret    string
	JWTExpiryMin int

	ExpoPushURL string
	PushTimeout time.Duration

	BackendURL    string
	BackendAPIKey string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3ACL        string

	MessageRateLimit  int
	MessageRateWindow time.Duration

	RepairInterval time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	envFile := getEnv("RELAY_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:                 getEnv("APP_PORT", "8080"),
		AppMode:                 getEnv("APP_MODE", "debug"),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		RedisEnabled:            getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:               getEnv("REDIS_HOST", "localhost"),
		RedisPort:               getEnv("REDIS_PORT", "6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		FirebaseDatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebasePollInterval:    time.Duration(getEnvAsInt("FIREBASE_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		AuthProvider:            strings.ToLower(getEnv("AUTH_PROVIDER", AuthJWT)),
		JWTSecret:               getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:            getEnvAsInt("JWT_EXPIRY_MIN", 60),
		ExpoPushURL:             getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		PushTimeout:             time.Duration(getEnvAsInt("PUSH_TIMEOUT_SEC", 10)) * time.Second,
		BackendURL:              getEnv("BACKEND_URL", ""),
		BackendAPIKey:           getEnv("BACKEND_API_KEY", ""),
		S3Region:                getEnv("S3_REGION", ""),
		S3Bucket:                getEnv("S3_BUCKET", ""),
		S3AccessKey:             getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:             getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:              getEnv("S3_ENDPOINT", ""),
		S3PublicBase:            getEnv("S3_PUBLIC_BASE", ""),
		S3ACL:                   getEnv("S3_ACL", "public-read"),
		MessageRateLimit:        getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		MessageRateWindow:       time.Duration(getEnvAsInt("MESSAGE_RATE_WINDOW_SEC", 60)) * time.Second,
		RepairInterval:          time.Duration(getEnvAsInt("REPAIR_INTERVAL_MIN", 0)) * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// UsesRedis reports whether a Redis server is configured, either as the
// store or for rate limiting and cross-instance session events.
func (c *Config) UsesRedis() bool {
	return c.StoreDriver == StoreRedis || c.RedisEnabled
}

// UsesFirebase reports whether the Firebase Admin SDK must be initialized.
func (c *Config) UsesFirebase() bool {
	return c.StoreDriver == StoreFirebase || c.AuthProvider == AuthFirebase || c.FirebaseDatabaseURL != ""
}
