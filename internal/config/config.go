package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
)

// Config holds all runtime settings. Values come from the environment, with an
// optional .env file loaded first so local development does not need exports.
type Config struct {
	ServerAddr string

	// DatabaseURL selects PostgreSQL when set; otherwise SQLitePath is used.
	DatabaseURL string
	SQLitePath  string

	SessionSecret    string
	SessionRedisAddr string
	SessionRedisPass string

	TemplateGlob string
	LogLevel     logging.Level
}

const (
	defaultServerAddr   = ":8080"
	defaultSQLitePath   = "data/library.db"
	defaultTemplateGlob = "web/templates/*.html"

	// Development fallback only; deployments must set SESSION_SECRET.
	defaultSessionSecret = "mini-library-dev-secret"
)

// Load reads configuration from the environment. A missing .env file is not an
// error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:       getEnv("SERVER_ADDR", defaultServerAddr),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", defaultSQLitePath),
		SessionSecret:    getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionRedisAddr: os.Getenv("SESSION_REDIS_ADDR"),
		SessionRedisPass: os.Getenv("SESSION_REDIS_PASSWORD"),
		TemplateGlob:     getEnv("TEMPLATE_GLOB", defaultTemplateGlob),
		LogLevel:         parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) logging.Level {
	level, err := logging.LogLevel(s)
	if err != nil {
		return logging.INFO
	}
	return level
}
