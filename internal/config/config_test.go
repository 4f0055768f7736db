package config

import "testing"

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.VenueBaseURL != "https://api.elections.kalshi.com/trade-api/v2" {
		t.Errorf("VenueBaseURL = %v, want the default venue endpoint", c.VenueBaseURL)
	}
	if c.PriceFeedBaseURL != "https://api.freecryptoapi.com/v1" {
		t.Errorf("PriceFeedBaseURL = %v, want the default price feed endpoint", c.PriceFeedBaseURL)
	}
	if c.SeriesTicker != "KXBTCD" {
		t.Errorf("SeriesTicker = %v, want KXBTCD", c.SeriesTicker)
	}
	if c.FractionalKelly != 0.2 {
		t.Errorf("FractionalKelly = %v, want 0.2", c.FractionalKelly)
	}
	if c.MaxPositionSize != 50 {
		t.Errorf("MaxPositionSize = %v, want 50", c.MaxPositionSize)
	}
	if c.EVThreshold != 0.02 {
		t.Errorf("EVThreshold = %v, want 0.02", c.EVThreshold)
	}
	if c.MaxDailyDrawdown != 100.0 {
		t.Errorf("MaxDailyDrawdown = %v, want 100.0", c.MaxDailyDrawdown)
	}
	if c.ServerPort != 3001 {
		t.Errorf("ServerPort = %v, want 3001", c.ServerPort)
	}
}

func TestEnvFloatOrRejectsBadValue(t *testing.T) {
	t.Setenv("FRACTIONAL_KELLY", "not-a-number")
	if _, err := envFloatOr("FRACTIONAL_KELLY", "0.2"); err == nil {
		t.Fatal("expected error parsing invalid float env var")
	}
}

func TestLoadRequiresVenueCredentials(t *testing.T) {
	t.Setenv("VENUE_API_KEY_ID", "")
	t.Setenv("VENUE_PRIVATE_KEY_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when venue credentials are missing")
	}
}
