package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("POSTBOARD_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// PORT and DATABASE_URL follow the usual hosting conventions
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = dbURL
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Log.Level)
	logCfg.FilePath = cfg.Log.File
	logCfg.Console = true
	logCfg.Format = cfg.Log.Format
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to create server", logger.F("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.F("error", err))
		}
	}()

	if err := srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Server failed", logger.F("error", err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
