package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTLMinutes is applied when JWT_EXP_MINUTES is unset or invalid.
const DefaultTokenTTLMinutes = 60

// DefaultBcryptCost is the work factor used when AUTH_BCRYPT_COST is unset.
const DefaultBcryptCost = 12

// ErrMissingDatabaseURL is returned when DATABASE_URL is not set.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN                 string
	MaxConns            int32
	MinConns            int32
	RunMigrations       bool
	ConnMaxIdleSec      int32
	ConnMaxLifeSec      int32
	ConnectAttempts     int
	ConnectRetrySeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	URL string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	// JWT is nil when no signing secret was provided. Callers must treat that
	// as "not configured" and fail closed.
	JWT                *JWTConfig
	BcryptCost         int
	HashWorkers        int
	LoginMaxAttempts   int
	LoginWindowMinutes int
}

// JWTConfig holds the signing secret and token lifetime.
type JWTConfig struct {
	Secret     []byte
	TTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, ErrMissingDatabaseURL
	}

	port := getEnv("APP_PORT", "8000")
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("APP_PORT must be a number: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  port,
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                 dsn,
			MaxConns:            int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:            int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:       getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:      int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:      int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectAttempts:     getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 10),
			ConnectRetrySeconds: getEnvAsInt("POSTGRES_CONNECT_RETRY_SECONDS", 2),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWT:                loadJWT(),
			BcryptCost:         clampCost(getEnvAsInt("AUTH_BCRYPT_COST", DefaultBcryptCost)),
			HashWorkers:        getEnvAsInt("AUTH_HASH_WORKERS", runtime.GOMAXPROCS(0)),
			LoginMaxAttempts:   getEnvAsInt("AUTH_LOGIN_MAX_ATTEMPTS", 5),
			LoginWindowMinutes: getEnvAsInt("AUTH_LOGIN_WINDOW_MINUTES", 15),
		},
	}

	return cfg, nil
}

func loadJWT() *JWTConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil
	}
	ttl := getEnvAsInt("JWT_EXP_MINUTES", DefaultTokenTTLMinutes)
	if ttl <= 0 {
		ttl = DefaultTokenTTLMinutes
	}
	return &JWTConfig{Secret: []byte(secret), TTLMinutes: ttl}
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ConnectRetryInterval returns the pause between connection attempts.
func (p PostgresConfig) ConnectRetryInterval() time.Duration {
	if p.ConnectRetrySeconds <= 0 {
		return time.Second
	}
	return time.Duration(p.ConnectRetrySeconds) * time.Second
}

// TTL returns the token lifetime.
func (j *JWTConfig) TTL() time.Duration {
	if j == nil || j.TTLMinutes <= 0 {
		return DefaultTokenTTLMinutes * time.Minute
	}
	return time.Duration(j.TTLMinutes) * time.Minute
}

// LoginWindow returns the failed-login counting window.
func (a AuthConfig) LoginWindow() time.Duration {
	if a.LoginWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(a.LoginWindowMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
