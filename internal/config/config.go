package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Live       LiveConfig
	Translator TranslatorConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RealtimeLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// LiveConfig tunes the session coordination layer.
type LiveConfig struct {
	StaleThreshold         time.Duration
	ChatHistoryLimit       int
	TxMaxAttempts          int
	ReconcileSweepInterval time.Duration // 0 disables the sweeper
	TouchInterval          time.Duration
	HolderCacheTTL         time.Duration // how long ingress trusts a cached slot holder
}

type TranslatorConfig struct {
	Provider string // "ollama", "huggingface" or "http"
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogPath:    getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Live: LiveConfig{
			StaleThreshold:         getEnvAsDuration("LIVE_STALE_THRESHOLD", 30*time.Second),
			ChatHistoryLimit:       getEnvAsInt("LIVE_CHAT_HISTORY_LIMIT", 100),
			TxMaxAttempts:          getEnvAsInt("LIVE_TX_MAX_ATTEMPTS", 3),
			ReconcileSweepInterval: getEnvAsDuration("LIVE_RECONCILE_SWEEP_INTERVAL", time.Minute),
			TouchInterval:          getEnvAsDuration("LIVE_TOUCH_INTERVAL", 5*time.Second),
			HolderCacheTTL:         getEnvAsDuration("LIVE_HOLDER_CACHE_TTL", 2*time.Second),
		},
		Translator: TranslatorConfig{
			Provider: getEnv("TRANSLATOR_PROVIDER", "ollama"),
			BaseURL:  getEnv("TRANSLATOR_URL", "http://localhost:11434"),
			Model:    getEnv("TRANSLATOR_MODEL", "llama3"),
			APIKey:   getEnv("TRANSLATOR_API_KEY", ""),
			Timeout:  getEnvAsDuration("TRANSLATOR_TIMEOUT", 20*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
