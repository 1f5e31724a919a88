package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the sourcing assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	ModelProvider    string
	ModelTimeout     time.Duration
	ModelTemperature float64
	ModelMaxTokens   int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicAPIKey string
	AnthropicModel  string

	GeminiAPIKey string
	GeminiModel  string

	ModelHTTPURL string

	DatabaseURL         string
	SessionHistoryLimit int
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "sourcebot"),
		LogLevel:            envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("APP_LOG_FORMAT", "json"),
		ModelProvider:       strings.ToLower(envOrDefault("MODEL_PROVIDER", "auto")),
		OpenAIAPIKey:        trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-2024-08-06"),
		OpenAIBaseURL:       trimmedEnv("OPENAI_BASE_URL"),
		AnthropicAPIKey:     trimmedEnv("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:        trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:         envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		ModelHTTPURL:        trimmedEnv("MODEL_HTTP_URL"),
		DatabaseURL:         trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:     15 * time.Second,
		ModelTimeout:        30 * time.Second,
		ModelTemperature:    0.7,
		ModelMaxTokens:      1000,
		SessionHistoryLimit: 50,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelTimeout, err = durationFromEnv("MODEL_TIMEOUT", cfg.ModelTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelTemperature, err = floatFromEnv("MODEL_TEMPERATURE", cfg.ModelTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelMaxTokens, err = intFromEnv("MODEL_MAX_TOKENS", cfg.ModelMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionHistoryLimit, err = intFromEnv("SESSION_HISTORY_LIMIT", cfg.SessionHistoryLimit)
	if err != nil {
		return Config{}, err
	}

	switch cfg.ModelProvider {
	case "auto", "openai", "anthropic", "gemini", "http", "mock":
	default:
		return Config{}, fmt.Errorf("MODEL_PROVIDER %q is not supported", cfg.ModelProvider)
	}
	if cfg.ModelTimeout < time.Second {
		return Config{}, fmt.Errorf("MODEL_TIMEOUT must be at least 1s")
	}
	if cfg.ModelTemperature < 0 || cfg.ModelTemperature > 2 {
		return Config{}, fmt.Errorf("MODEL_TEMPERATURE must be within [0, 2]")
	}
	if cfg.ModelMaxTokens <= 0 {
		return Config{}, fmt.Errorf("MODEL_MAX_TOKENS must be positive")
	}
	if cfg.SessionHistoryLimit < 2 {
		return Config{}, fmt.Errorf("SESSION_HISTORY_LIMIT must be at least 2")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
