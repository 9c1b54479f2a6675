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
	"github.com/maksym/trade_sentinel/internal/infrastructure/lock"
	"github.com/maksym/trade_sentinel/internal/infrastructure/logger"
	"github.com/maksym/trade_sentinel/internal/infrastructure/notifier"
	"github.com/maksym/trade_sentinel/internal/infrastructure/storage"
	"github.com/maksym/trade_sentinel/internal/usecase"
)

// monitor runs one position-monitoring cycle per invocation, under the same
// named lock as the scanners.
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

	locks := lock.NewManager(cfg.Lock.Dir, cfg.Lock.PollInterval(), cfg.Lock.MaxWait(), log)
	held, err := locks.Acquire(ctx, cfg.Lock.Name)
	if err != nil {
		log.Error("Failed to acquire job lock", zap.Error(err))
		return 1
	}
	defer held.Release()

	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout(), log)
	notify := notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout(), log)
	monitor := usecase.NewPositionMonitor(client, client, store, store, store, store,
		notify, cfg.Monitor, log)

	if err := monitor.RunCycle(ctx); err != nil {
		log.Error("Monitor cycle failed", zap.Error(err))
		return 1
	}
	return 0
}
