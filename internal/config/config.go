// Package config loads the engine's runtime configuration from the
// environment, following the same "load once at boot, pass down as a
// value" approach as the rest of the stack.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every tunable the engine needs at boot. PriceFeedAPIKey is
// sent by the price-feed client. The venue credentials are loaded and
// required, but no client in this repo reads them: VenueClient sends
// unsigned requests.
type Config struct {
	VenueAPIKeyID         string
	VenuePrivateKeyPath   string
	VenueBaseURL          string
	PriceFeedAPIKey       string
	PriceFeedBaseURL      string
	SeriesTicker          string
	FractionalKelly       float64
	MaxPositionSize       float64
	EVThreshold           float64
	MaxDailyDrawdown      float64
	ServerPort            int
}

// Load reads Config from the environment, applying the same defaults as
// the reference implementation. VenueAPIKeyID and VenuePrivateKeyPath are
// required; everything else falls back to a sensible default.
func Load() (*Config, error) {
	fractionalKelly, err := envFloatOr("FRACTIONAL_KELLY", "0.2")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	maxPosition, err := envFloatOr("MAX_POSITION_SIZE", "50")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	evThreshold, err := envFloatOr("EV_THRESHOLD", "0.02")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	maxDrawdown, err := envFloatOr("MAX_DAILY_DRAWDOWN", "100.0")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	port, err := envIntOr("SERVER_PORT", "3001")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	keyID, err := envRequired("VENUE_API_KEY_ID")
	if err != nil {
		return nil, err
	}
	keyPath, err := envRequired("VENUE_PRIVATE_KEY_PATH")
	if err != nil {
		return nil, err
	}

	return &Config{
		VenueAPIKeyID:       keyID,
		VenuePrivateKeyPath: keyPath,
		VenueBaseURL:        envOr("VENUE_BASE_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		PriceFeedAPIKey:     os.Getenv("PRICE_FEED_API_KEY"),
		PriceFeedBaseURL:    envOr("PRICE_FEED_BASE_URL", "https://api.freecryptoapi.com/v1"),
		SeriesTicker:        envOr("SERIES_TICKER", "KXBTCD"),
		FractionalKelly:     fractionalKelly,
		MaxPositionSize:     maxPosition,
		EVThreshold:         evThreshold,
		MaxDailyDrawdown:    maxDrawdown,
		ServerPort:          port,
	}, nil
}

// Default returns a Config populated with the same defaults Load() would
// apply, for use in tests and local development without credentials.
func Default() *Config {
	return &Config{
		VenueBaseURL:     "https://api.elections.kalshi.com/trade-api/v2",
		PriceFeedBaseURL: "https://api.freecryptoapi.com/v1",
		SeriesTicker:     "KXBTCD",
		FractionalKelly:  0.2,
		MaxPositionSize:  50,
		EVThreshold:      0.02,
		MaxDailyDrawdown: 100.0,
		ServerPort:       3001,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: missing env var %s", key)
	}
	return v, nil
}

func envFloatOr(key, def string) (float64, error) {
	v := envOr(key, def)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envIntOr(key, def string) (int, error) {
	v := envOr(key, def)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
