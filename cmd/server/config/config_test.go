package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Listen:           ":8080",
		LogFormat:        "text",
		LogLevel:         "info",
		AssetsDir:        "assets",
		Storage:          "memory",
		SQLitePath:       "predictions.db",
		Dataset:          "csv",
		DatasetPath:      "data/reservations.csv",
		DatasetTimeout:   30 * time.Second,
		FitConcurrency:   2,
		ForecastCacheTTL: 10 * time.Minute,
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		wreck func(c *Config)
	}{
		{"empty assets dir", func(c *Config) { c.AssetsDir = "" }},
		{"unknown storage", func(c *Config) { c.Storage = "dynamo" }},
		{"sqlite without path", func(c *Config) { c.Storage = "sqlite"; c.SQLitePath = "" }},
		{"unknown dataset", func(c *Config) { c.Dataset = "kafka" }},
		{"csv without path", func(c *Config) { c.DatasetPath = "" }},
		{"http without url", func(c *Config) { c.Dataset = "http"; c.DatasetValuePath = "items.#.ts" }},
		{"http without value path", func(c *Config) { c.Dataset = "http"; c.DatasetURL = "http://example.com" }},
		{"zero fit concurrency", func(c *Config) { c.FitConcurrency = 0 }},
		{"tls enabled without files", func(c *Config) { c.TLS.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.wreck(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

func TestConfig_Validate_HTTPDataset(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset = "http"
	cfg.DatasetURL = "https://api.example.com/reservations"
	cfg.DatasetValuePath = "items.#.arrival_datetime"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate_StorageBackends(t *testing.T) {
	for _, storage := range []string{"memory", "sqlite", "redis"} {
		cfg := validConfig()
		cfg.Storage = storage
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with storage=%s error = %v", storage, err)
		}
	}
}
