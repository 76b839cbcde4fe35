package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           string
	UpstreamURL    string
	StaticOrigin   string
	RedisURL       string
	VAPIDPublicKey string
	CSRFToken      string
	ThemeFile      string
	SyncInterval   int // seconds between sync-queue replays
	LogLevel       string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		UpstreamURL:    getEnv("UPSTREAM_URL", "http://localhost:8000"),
		StaticOrigin:   getEnv("STATIC_ORIGIN", "http://localhost:8000"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		VAPIDPublicKey: getEnv("VAPID_PUBLIC_KEY", ""),
		CSRFToken:      getEnv("CSRF_TOKEN", ""),
		ThemeFile:      getEnv("THEME_FILE", "theme.json"),
		SyncInterval:   getEnvInt("SYNC_INTERVAL", 60),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
