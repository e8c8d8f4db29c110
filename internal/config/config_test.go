package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Station.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %q", cfg.Station.DataDir)
	}
	if cfg.Requests.DefaultExpirationHours != 168 {
		t.Fatalf("expected default expiration 168h, got %d", cfg.Requests.DefaultExpirationHours)
	}
}
