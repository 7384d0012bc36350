package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the relay service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	// RelayAuthToken is the bearer credential clients present on POST calls.
	// Empty disables caller auth (local development).
	RelayAuthToken string

	HeyGenAPIKey  string
	HeyGenBaseURL string
	HeyGenVoiceID string
	HeyGenQuality string

	ProviderTimeout time.Duration

	MailgunAPIKey string
	MailgunDomain string
	MailgunFrom   string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "eventhost"),
		RelayAuthToken:   envTrimmed("RELAY_AUTH_TOKEN"),
		HeyGenAPIKey:     envTrimmed("HEYGEN_API_KEY"),
		HeyGenBaseURL:    envOrDefault("HEYGEN_BASE_URL", "https://api.heygen.com"),
		// Default presenter voice for the streaming avatar.
		HeyGenVoiceID:   envOrDefault("HEYGEN_VOICE_ID", "1bd001e7e50f421d891986aad5158bc8"),
		HeyGenQuality:   envOrDefault("HEYGEN_QUALITY", "medium"),
		MailgunAPIKey:   envTrimmed("MAILGUN_API_KEY"),
		MailgunDomain:   envTrimmed("MAILGUN_DOMAIN"),
		MailgunFrom:     envTrimmed("MAILGUN_FROM"),
		DatabaseURL:     envTrimmed("DATABASE_URL"),
		ShutdownTimeout: 15 * time.Second,
		ProviderTimeout: 30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderTimeout, err = durationFromEnv("HEYGEN_TIMEOUT", cfg.ProviderTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.ProviderTimeout < time.Second {
		return Config{}, fmt.Errorf("HEYGEN_TIMEOUT must be at least 1s")
	}
	switch cfg.HeyGenQuality {
	case "low", "medium", "high":
	default:
		return Config{}, fmt.Errorf("HEYGEN_QUALITY must be low, medium or high")
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

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
