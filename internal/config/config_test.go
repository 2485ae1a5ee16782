package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("PORT", "")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("SLOT_WINDOW", "")
	t.Setenv("OTEL_ENDPOINT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 7171 {
		t.Errorf("expected HTTPPort 7171, got %d", cfg.HTTPPort)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Errorf("expected TickInterval 30s, got %v", cfg.TickInterval)
	}
	if cfg.SlotWindow != 60*time.Second {
		t.Errorf("expected SlotWindow 60s, got %v", cfg.SlotWindow)
	}
	if cfg.OTELEndpoint != "" {
		t.Errorf("expected empty OTELEndpoint, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db:5432/releases")
	t.Setenv("PORT", "9090")
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("SLOT_WINDOW", "2m")
	t.Setenv("OTEL_ENDPOINT", "collector:4317")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://db:5432/releases" {
		t.Errorf("unexpected DatabaseURL: %s", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("expected HTTPPort 9090, got %d", cfg.HTTPPort)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Errorf("expected TickInterval 10s, got %v", cfg.TickInterval)
	}
	if cfg.SlotWindow != 2*time.Minute {
		t.Errorf("expected SlotWindow 2m, got %v", cfg.SlotWindow)
	}
	if cfg.OTELEndpoint != "collector:4317" {
		t.Errorf("expected OTELEndpoint collector:4317, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad tick interval", "TICK_INTERVAL", "often"},
		{"bad slot window", "SLOT_WINDOW", "60"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
