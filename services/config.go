package services

import (
	"os"
	"strconv"
	"time"
)

// Config carries the tunable values for the booking and payout engines.
// Secrets (provider key, webhook secret) come from the environment alongside
// them but are never logged.
type Config struct {
	PlatformFeePercent float64       // platform share of a booking total
	AutoReleaseHours   int           // hours after check-in before forced release
	SweepInterval      time.Duration // watcher tick interval
	WatcherBatchSize   int           // max bookings processed per sweep
	ProviderBaseURL    string        // payout provider API base
	ProviderAPIKey     string
	ProviderTimeout    time.Duration // bound on a single transfer call
	WebhookSecret      string        // shared secret for payment webhook HMAC
}

func LoadConfig() Config {
	return Config{
		PlatformFeePercent: envFloat("PLATFORM_FEE_PERCENT", 7),
		AutoReleaseHours:   envInt("AUTO_RELEASE_HOURS", 24),
		SweepInterval:      time.Duration(envInt("WATCHER_SWEEP_MINUTES", 15)) * time.Minute,
		WatcherBatchSize:   envInt("WATCHER_BATCH_SIZE", 10),
		ProviderBaseURL:    os.Getenv("PAYOUT_PROVIDER_URL"),
		ProviderAPIKey:     os.Getenv("PAYOUT_PROVIDER_API_KEY"),
		ProviderTimeout:    time.Duration(envInt("PAYOUT_TIMEOUT_SECONDS", 10)) * time.Second,
		WebhookSecret:      os.Getenv("PAYMENT_WEBHOOK_SECRET"),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
