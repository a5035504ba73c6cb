// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the server.
type Config struct {
	App      AppConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Uploads  UploadConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Calendar CalendarConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Port        string
	CORSOrigins []string
}

// StorageConfig selects the snapshot repository.
type StorageConfig struct {
	Driver      string // sqlite, postgres or memory
	SQLitePath  string
	PostgresDSN string
}

// RedisConfig holds Redis connection values. An empty Addr disables the
// summary cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// UploadConfig is where evidence documents go and how they are addressed.
type UploadConfig struct {
	Dir     string
	BaseURL string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig holds credential hashing and the bootstrap administrator.
type AuthConfig struct {
	BcryptCost  int
	AdminID     string
	AdminName   string
	AdminSecret string
}

// CalendarConfig points at an optional YAML file of extra holiday rules.
type CalendarConfig struct {
	File string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "8080"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			SQLitePath:  getEnv("SQLITE_PATH", "leave.db"),
			PostgresDSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Uploads: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", "uploads"),
			BaseURL: getEnv("UPLOAD_BASE_URL", "/uploads"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			BcryptCost:  getEnvAsInt("BCRYPT_COST", 12),
			AdminID:     getEnv("ADMIN_ID", "admin"),
			AdminName:   getEnv("ADMIN_NAME", "Super Admin"),
			AdminSecret: os.Getenv("ADMIN_SECRET"),
		},
		Calendar: CalendarConfig{
			File: os.Getenv("CALENDAR_FILE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return ":" + a.Port
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

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
