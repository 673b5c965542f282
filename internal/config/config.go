package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string

	JWTSecret         string
	AccessTokenMaxAge int

	RedisURL string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Flat rewards applied by the surrounding actions, before achievements are evaluated.
	BookAddXP int64
	CommentXP int64

	LeaderboardSize int
	WorkerCount     int
	ShutdownTimeout time.Duration
}

// LoadConfig reads .env (if present) and then the process environment.
// It returns a *Config plus a note describing whether .env was loaded,
// since the logger is not built yet at this point.
func LoadConfig() (*Config, string, error) {
	note := ".env loaded"
	if err := godotenv.Load(); err != nil {
		note = "no .env file found, relying on environment variables"
	}

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DATABASE_SSLMODE", "require"),

		ServerPort: getEnv("SERVER_PORT", "8080"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: getInt("ACCESS_TOKEN_MAX_AGE", 86400),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		BookAddXP: int64(getInt("BOOK_ADD_XP", 10)),
		CommentXP: int64(getInt("COMMENT_XP", 2)),

		LeaderboardSize: getInt("LEADERBOARD_SIZE", 10),
		WorkerCount:     getInt("WORKER_COUNT", 4),
		ShutdownTimeout: time.Duration(getInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if cfg.JWTSecret == "" {
		return nil, note, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, note, nil
}

// DSN is the lib/pq connection string for the configured database.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// R2Enabled reports whether cover uploads can be stored.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt falls back for missing, malformed and negative values.
func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}
