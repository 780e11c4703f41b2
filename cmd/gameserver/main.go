// Package main provides the game server binary: the JSON API, the chat websocket and the
// gRPC health endpoint over the configured database.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/corsair/internal/app"
	"github.com/cory-johannsen/corsair/internal/config"
	"github.com/cory-johannsen/corsair/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "gameserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("http_addr", cfg.Server.Addr()),
		zap.String("grpc_addr", cfg.Health.Addr()),
		zap.String("driver", cfg.Database.Driver),
	)

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer stores.Close()

	srv, err := app.New(cfg, stores, logger)
	if err != nil {
		logger.Fatal("wiring game server", zap.Error(err))
	}
	logger.Info("game server ready", zap.Duration("startup", time.Since(start)))

	if err := srv.Run(ctx); err != nil {
		logger.Error("game server stopped with error", zap.Error(err))
	}
}
