package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"model_settings/internal/queue"
)

// Config holds configuration for the provider service.
type Config struct {
	HTTPPort   string
	JWTSecret  []byte
	Database   DatabaseConfig
	Redis      RedisConfig
	Encryption EncryptionConfig
	Cache      CacheConfig
	Validation ValidationConfig
	Audit      AuditConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address disables Redis.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EncryptionConfig selects the key protecting provider secrets at rest.
// Key takes precedence over Secret.
type EncryptionConfig struct {
	Key    string // 64 hex characters or a base64 key
	Secret string // any passphrase, stretched with HKDF
}

// CacheConfig holds cache settings
type CacheConfig struct {
	ProviderListTTL time.Duration
}

// ValidationConfig holds settings of the model validation endpoint
type ValidationConfig struct {
	Timeout   time.Duration
	RateLimit int // per user per minute, 0 = unlimited
	CacheSize int
	CacheTTL  time.Duration
}

// AuditConfig holds settings of the audit list and the queue feeding it
type AuditConfig struct {
	Key     string
	MaxSize int64
	Queue   queue.Config
}

// ClientConfig holds settings of the modelctl CLI.
type ClientConfig struct {
	Server    string
	Token     string
	StatePath string
	Cloud     bool
	Timeout   time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

// Load reads the server configuration from environment variables.
func Load() (*Config, error) {
	port := getEnvString("HTTP_PORT", "8080")
	jwtSecret := LoadJWTSecret()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:  port,
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Encryption: EncryptionConfig{
			Key:    getEnvString("ENCRYPTION_KEY", ""),
			Secret: getEnvString("ENCRYPTION_SECRET", ""),
		},
		Cache: CacheConfig{
			ProviderListTTL: getEnvDuration("PROVIDER_LIST_CACHE_TTL", 30*time.Second),
		},
		Validation: ValidationConfig{
			Timeout:   getEnvDuration("VALIDATION_TIMEOUT", 60*time.Second),
			RateLimit: getEnvInt("VALIDATION_RATE_LIMIT", 20),
			CacheSize: getEnvInt("VALIDATION_CACHE_SIZE", 256),
			CacheTTL:  getEnvDuration("VALIDATION_CACHE_TTL", 10*time.Minute),
		},
		Audit: AuditConfig{
			Key:     getEnvString("AUDIT_LOG_KEY", "audit:providers"),
			MaxSize: getEnvInt64("AUDIT_LOG_MAX_SIZE", 10000),
			Queue: queue.Config{
				Capacity:     getEnvInt("AUDIT_QUEUE_CAPACITY", 1000),
				BatchSize:    getEnvInt("AUDIT_BATCH_SIZE", 100),
				BatchTimeout: getEnvDuration("AUDIT_BATCH_TIMEOUT", 2*time.Second),
				MaxAttempts:  getEnvInt("AUDIT_MAX_ATTEMPTS", 3),
				RetryBackoff: getEnvDuration("AUDIT_RETRY_BACKOFF", 200*time.Millisecond),
			},
		},
	}

	if cfg.Encryption.Key == "" && cfg.Encryption.Secret == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY or ENCRYPTION_SECRET is required")
	}

	return cfg, nil
}

// LoadJWTSecret reads only the token signing secret, for tools that mint tokens.
func LoadJWTSecret() []byte {
	return []byte(getEnvString("JWT_SECRET", "supersecretkey"))
}

// LoadClient reads the modelctl configuration. Flags override these values.
func LoadClient() ClientConfig {
	statePath := getEnvString("MODELCTL_STATE", "")
	if statePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			statePath = home + string(os.PathSeparator) + ".modelctl.json"
		} else {
			statePath = ".modelctl.json"
		}
	}

	return ClientConfig{
		Server:    getEnvString("MODELCTL_SERVER", "http://localhost:8080"),
		Token:     getEnvString("MODELCTL_TOKEN", ""),
		StatePath: statePath,
		Cloud:     getEnvBool("MODELCTL_CLOUD", true),
		Timeout:   getEnvDuration("MODELCTL_TIMEOUT", 90*time.Second),
	}
}
