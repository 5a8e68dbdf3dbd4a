package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	JWT        JWTConfig
	Moderation ModerationConfig
	Analytics  AnalyticsConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend string // redis | postgres | memory

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDBName   string
	PostgresSSLMode  string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type ModerationConfig struct {
	LengthCeiling      int // inline classifier flag threshold
	RateLimitSends     int // sends allowed per window per user
	RateLimitWindowSec int
}

type AnalyticsConfig struct {
	ReportRetentionDays int
	DefaultWindowDays   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Store: StoreConfig{
			Backend:          getEnv("STORE_BACKEND", "redis"),
			RedisHost:        getEnv("REDIS_HOST", "localhost"),
			RedisPort:        getEnv("REDIS_PORT", "6379"),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisDB:          getEnvInt("REDIS_DB", 0),
			PostgresHost:     getEnv("DB_HOST", "localhost"),
			PostgresPort:     getEnv("DB_PORT", "5432"),
			PostgresUser:     getEnv("DB_USER", "parley"),
			PostgresPassword: getEnv("DB_PASSWORD", "parley_password"),
			PostgresDBName:   getEnv("DB_NAME", "parley_db"),
			PostgresSSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-this-secret-key"),
			ExpiryHours: getEnvInt("JWT_EXPIRY_HOURS", 168),
		},
		Moderation: ModerationConfig{
			LengthCeiling:      getEnvInt("MODERATION_LENGTH_CEILING", 800),
			RateLimitSends:     getEnvInt("RATE_LIMIT_SENDS", 10),
			RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Analytics: AnalyticsConfig{
			ReportRetentionDays: getEnvInt("REPORT_RETENTION_DAYS", 90),
			DefaultWindowDays:   getEnvInt("ANALYTICS_WINDOW_DAYS", 30),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
	}

	switch cfg.Store.Backend {
	case "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	if cfg.JWT.Secret == "change-this-secret-key" && cfg.Server.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// GetRedisAddr returns the Redis address.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Store.RedisHost, c.Store.RedisPort)
}

// GetPostgresDSN returns the Postgres connection string.
func (c *Config) GetPostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Store.PostgresHost,
		c.Store.PostgresPort,
		c.Store.PostgresUser,
		c.Store.PostgresPassword,
		c.Store.PostgresDBName,
		c.Store.PostgresSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
