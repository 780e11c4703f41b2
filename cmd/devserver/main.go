// Package main provides the all-in-one development server. It runs the game server on a
// local SQLite file with console logging, so no PostgreSQL instance is needed.
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
	dbPath := flag.String("db", "", "SQLite database file; overrides database.sqlite_path")
	staticDir := flag.String("static", "", "directory served at / for the browser client")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg.Database.Driver = config.DriverSQLite
	if *dbPath != "" {
		cfg.Database.SQLitePath = *dbPath
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	cfg.Server.Mode = "debug"
	cfg.Logging.Format = "console"

	logger, err := observability.NewLogger(cfg.Logging, "devserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer stores.Close()

	srv, err := app.New(cfg, stores, logger)
	if err != nil {
		logger.Fatal("wiring dev server", zap.Error(err))
	}
	logger.Info("dev server ready",
		zap.String("url", "http://"+cfg.Server.Addr()),
		zap.String("db", cfg.Database.SQLitePath),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("dev server stopped with error", zap.Error(err))
	}
}
