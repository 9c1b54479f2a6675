package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/infrastructure/gateway"
	"github.com/maksym/trade_sentinel/internal/infrastructure/logger"
	"github.com/maksym/trade_sentinel/internal/infrastructure/notifier"
	"github.com/maksym/trade_sentinel/internal/infrastructure/storage"
	"github.com/maksym/trade_sentinel/internal/usecase"
)

// summary sends the daily digest. Read-only, so it runs without the job
// lock.
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
	notify := notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout(), log)
	summary := usecase.NewSummaryService(client, store, store, notify, log)

	if err := summary.Run(ctx); err != nil {
		log.Error("Summary failed", zap.Error(err))
		return 1
	}
	return 0
}
