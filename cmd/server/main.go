package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/infrastructure/gateway"
	"github.com/maksym/trade_sentinel/internal/infrastructure/logger"
	"github.com/maksym/trade_sentinel/internal/infrastructure/storage"
	"github.com/maksym/trade_sentinel/internal/web"
)

// server is the long-running read-only dashboard.
func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Error("Failed to open storage", zap.Error(err))
		return 1
	}
	defer store.Close()

	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout(), log)
	srv := web.NewServer(cfg.Server.Port, client, store, store, store, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", zap.Error(err))
			return 1
		}
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
			return 1
		}
	}
	return 0
}
