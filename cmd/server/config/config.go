// Package config provides configuration parsing for the staycast server.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the server including:
//   - Model asset location (assets directory)
//   - Prediction ledger backend (memory, sqlite, or redis)
//   - Forecast dataset source (csv file or http endpoint)
//   - Forecast tuning (fit concurrency, result cache TTL)
//   - Logging configuration (level, format)
//   - TLS configuration (cert, key, CA files)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/staycast/staycast/pkg/tls"
)

// Config holds all staycast server configuration.
type Config struct {
	Listen     string
	GRPCListen string
	LogFormat  string
	LogLevel   string
	TLS        tls.Config

	AssetsDir string

	Storage       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Dataset            string
	DatasetPath        string
	DatasetURL         string
	DatasetValuePath   string
	DatasetValueFormat string
	DatasetTimeout     time.Duration

	FitConcurrency   int
	ForecastCacheTTL time.Duration
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ""), "gRPC health listen address (empty disables)")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.AssetsDir, "assets-dir", getEnv("ASSETS_DIR", "assets"), "Directory holding the exported model assets")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Ledger backend: memory, sqlite, or redis")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", getEnv("SQLITE_PATH", "predictions.db"), "SQLite database file (storage=sqlite)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address (storage=redis)")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	flag.StringVar(&cfg.Dataset, "dataset", getEnv("DATASET", "csv"), "Forecast dataset source: csv or http")
	flag.StringVar(&cfg.DatasetPath, "dataset-path", getEnv("DATASET_PATH", "data/reservations.csv"), "Reservation CSV path (dataset=csv)")
	flag.StringVar(&cfg.DatasetURL, "dataset-url", getEnv("DATASET_URL", ""), "Reservation endpoint URL (dataset=http)")
	flag.StringVar(&cfg.DatasetValuePath, "dataset-value-path", getEnv("DATASET_VALUE_PATH", ""), "gjson path to arrival timestamps (dataset=http)")
	flag.StringVar(&cfg.DatasetValueFormat, "dataset-value-format", getEnv("DATASET_VALUE_FORMAT", "rfc3339"), "Timestamp format: rfc3339, date, unix, or unix_milli (dataset=http)")
	flag.DurationVar(&cfg.DatasetTimeout, "dataset-timeout", getEnvDuration("DATASET_TIMEOUT", 30*time.Second), "HTTP dataset request timeout")

	flag.IntVar(&cfg.FitConcurrency, "fit-concurrency", getEnvInt("FIT_CONCURRENCY", 2), "Max concurrent forecast model fits")
	flag.DurationVar(&cfg.ForecastCacheTTL, "forecast-cache-ttl", getEnvDuration("FORECAST_CACHE_TTL", 10*time.Minute), "Forecast result cache TTL (0 disables)")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks cross-field constraints that flag parsing cannot express.
func (c *Config) Validate() error {
	if c.AssetsDir == "" {
		return fmt.Errorf("assets-dir cannot be empty")
	}

	switch c.Storage {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid storage %q (must be memory, sqlite, or redis)", c.Storage)
	}

	if c.Storage == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path is required when storage=sqlite")
	}

	switch c.Dataset {
	case "csv":
		if c.DatasetPath == "" {
			return fmt.Errorf("dataset-path is required when dataset=csv")
		}
	case "http":
		if c.DatasetURL == "" {
			return fmt.Errorf("dataset-url is required when dataset=http")
		}
		if c.DatasetValuePath == "" {
			return fmt.Errorf("dataset-value-path is required when dataset=http")
		}
	default:
		return fmt.Errorf("invalid dataset %q (must be csv or http)", c.Dataset)
	}

	if c.FitConcurrency < 1 {
		return fmt.Errorf("fit-concurrency must be >= 1")
	}

	if err := c.TLS.Validate(); err != nil {
		return err
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
