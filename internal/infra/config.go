package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	TelegramBotToken string
	AdminUserID      int64

	DatabaseURL string

	SeedanceAPIKey string
	SeedanceAPIURL string
	MockMode       bool

	PhotoStoragePath string
	VideoStoragePath string

	MaxPhotos            int
	GenerationTimeout    time.Duration
	StatusUpdateInterval time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminUserID:          getEnvInt64("ADMIN_USER_ID", 0),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SeedanceAPIKey:       os.Getenv("SEEDANCE_API_KEY"),
		SeedanceAPIURL:       getEnv("SEEDANCE_API_URL", "https://api.seedance.example.com/v1"),
		MockMode:             getEnvBool("MOCK_MODE", true),
		PhotoStoragePath:     getEnv("PHOTO_STORAGE_PATH", "./photos"),
		VideoStoragePath:     getEnv("VIDEO_STORAGE_PATH", "./videos"),
		MaxPhotos:            getEnvInt("MAX_PHOTOS", 4),
		GenerationTimeout:    time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT", 300)),
		StatusUpdateInterval: time.Second * time.Duration(getEnvInt("STATUS_UPDATE_INTERVAL", 30)),
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if !cfg.MockMode && cfg.SeedanceAPIKey == "" {
		return nil, fmt.Errorf("SEEDANCE_API_KEY is required when MOCK_MODE is disabled")
	}

	if cfg.MaxPhotos < 1 {
		return nil, fmt.Errorf("MAX_PHOTOS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
