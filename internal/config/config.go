package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string

	// How often a tracked character is refreshed against the upstream API.
	FetchInterval time.Duration
	// How often the tracker wakes up to look for due characters.
	CheckInterval time.Duration
	// How recent the open stats version must be for a character to count as
	// recently active. Read-side classification only.
	OnlineThreshold time.Duration

	// Optional path to a historical JSON-lines dump. When set and the store
	// is empty, the dump is replayed on startup before tracking begins.
	ImportPath string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "wynntracker.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		FetchInterval:   time.Duration(getEnvInt("FETCH_INTERVAL_MINUTES", 15)) * time.Minute,
		CheckInterval:   time.Duration(getEnvInt("CHECK_INTERVAL_SECONDS", 60)) * time.Second,
		OnlineThreshold: time.Duration(getEnvInt("ONLINE_THRESHOLD_MINUTES", 15)) * time.Minute,
		ImportPath:      getEnv("IMPORT_PATH", ""),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("fetch_interval", cfg.FetchInterval).
		Dur("check_interval", cfg.CheckInterval).
		Dur("online_threshold", cfg.OnlineThreshold).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
