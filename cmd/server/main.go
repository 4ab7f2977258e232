// Command server implements the staycast prediction and forecast API.
//
// The server loads a frozen bundle of exported model assets at startup and
// serves:
//   - POST /predict         - Score one reservation and record it in the ledger
//   - POST /batch-predict   - Score an uploaded reservation CSV
//   - GET  /history         - Recent predictions, newest first
//   - GET  /forecast        - Weekly booking-volume forecast
//   - GET  /healthz         - Health check endpoint
//   - GET  /metrics         - Prometheus metrics endpoint
//
// Usage:
//
//	server \
//	  -assets-dir=assets \
//	  -storage=sqlite -sqlite-path=predictions.db \
//	  -dataset=csv -dataset-path=data/reservations.csv
//
// Environment variables:
//
//	LISTEN             - HTTP listen address (default: :8080)
//	ASSETS_DIR         - Exported model asset directory (default: assets)
//	STORAGE            - Ledger backend: memory, sqlite, redis (default: memory)
//	SQLITE_PATH        - SQLite database file (default: predictions.db)
//	REDIS_ADDR         - Redis server address (default: localhost:6379)
//	DATASET            - Forecast dataset source: csv, http (default: csv)
//	DATASET_PATH       - Reservation CSV path
//	DATASET_URL        - Reservation endpoint URL
//	FIT_CONCURRENCY    - Max concurrent forecast fits (default: 2)
//	FORECAST_CACHE_TTL - Forecast cache TTL (default: 10m)
//	LOG_LEVEL          - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT         - Logging format: text, json (default: text)
package main

import (
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/staycast/staycast/cmd/server/config"
	"github.com/staycast/staycast/cmd/server/logger"
	"github.com/staycast/staycast/cmd/server/metrics"
	"github.com/staycast/staycast/cmd/server/router"
	"github.com/staycast/staycast/pkg/assets"
	"github.com/staycast/staycast/pkg/classifier"
	"github.com/staycast/staycast/pkg/dataset"
	"github.com/staycast/staycast/pkg/features"
	"github.com/staycast/staycast/pkg/forecast"
	"github.com/staycast/staycast/pkg/httpx"
	"github.com/staycast/staycast/pkg/ledger"
	"github.com/staycast/staycast/pkg/predict"
	staycasttls "github.com/staycast/staycast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting staycast server",
		"version", version,
		"assets_dir", cfg.AssetsDir,
		"storage", cfg.Storage,
		"dataset", cfg.Dataset,
	)

	bundle, err := assets.Load(cfg.AssetsDir)
	if err != nil {
		logger.Error("failed to load model assets", "dir", cfg.AssetsDir, "error", err)
		os.Exit(1)
	}
	logger.Info("model assets loaded",
		"features", len(bundle.FeatureColumns),
		"encoders", len(bundle.Encoders),
		"layers", len(bundle.Model.Layers),
	)

	m := metrics.New(cfg.Storage)

	store, err := newStore(cfg)
	if err != nil {
		logger.Error("failed to initialize ledger", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close ledger", "error", err)
			}
		}()
	}

	source, err := newSource(cfg)
	if err != nil {
		logger.Error("failed to initialize dataset source", "dataset", cfg.Dataset, "error", err)
		os.Exit(1)
	}

	svc := predict.NewService(features.NewAligner(bundle), classifier.New(bundle.Model), store, logger, m)
	engine := forecast.NewEngine(source, cfg.FitConcurrency, cfg.ForecastCacheTTL, logger, m)

	mux := router.SetupRoutes(svc, engine, logger)
	handler := httpx.LoggingMiddleware(logger)(httpx.RecoveryMiddleware(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			tlsConfig, err := staycasttls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
			if err != nil {
				serverErr <- err
				return
			}
			httpServer.SetTLSConfig(tlsConfig)
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErr <- httpServer.Start()
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		grpcServer = grpc.NewServer()
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			logger.Error("failed to listen for gRPC health", "addr", cfg.GRPCListen, "error", err)
			os.Exit(1)
		}
		logger.Info("starting gRPC health server", "addr", cfg.GRPCListen)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newStore builds the prediction ledger backend from configuration.
func newStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Storage {
	case "sqlite":
		return ledger.NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return ledger.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return ledger.NewMemoryStore(), nil
	}
}

// newSource builds the forecast dataset source from configuration.
func newSource(cfg *config.Config) (dataset.Source, error) {
	switch cfg.Dataset {
	case "http":
		client, err := httpx.NewClient(cfg.TLS, cfg.DatasetTimeout)
		if err != nil {
			return nil, err
		}
		return &dataset.HTTPSource{
			URL:             cfg.DatasetURL,
			TimestampPath:   cfg.DatasetValuePath,
			TimestampFormat: cfg.DatasetValueFormat,
			HTTPClient:      client,
		}, nil
	default:
		return &dataset.CSVSource{Path: cfg.DatasetPath}, nil
	}
}
