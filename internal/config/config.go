// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the orchestrator API
	HTTPPort int

	// How often each active release is ticked
	TickInterval time.Duration

	// Window around a regression slot in which it counts as due
	SlotWindow time.Duration

	// OTLP collector address for traces (empty disables tracing)
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	portStr := os.Getenv("PORT")
	port := 7171 // Default
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		port = p
	}

	tickStr := os.Getenv("TICK_INTERVAL")
	tick := 30 * time.Second // Default
	if tickStr != "" {
		t, err := time.ParseDuration(tickStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		tick = t
	}

	windowStr := os.Getenv("SLOT_WINDOW")
	window := 60 * time.Second // Default, sized to tick frequency
	if windowStr != "" {
		w, err := time.ParseDuration(windowStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SLOT_WINDOW: %w", err)
		}
		window = w
	}

	return &Config{
		DatabaseURL:  dbURL,
		HTTPPort:     port,
		TickInterval: tick,
		SlotWindow:   window,
		OTELEndpoint: os.Getenv("OTEL_ENDPOINT"),
	}, nil
}
