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
	"github.com/maksym/trade_sentinel/internal/domain"
	"github.com/maksym/trade_sentinel/internal/infrastructure/gateway"
	"github.com/maksym/trade_sentinel/internal/infrastructure/lock"
	"github.com/maksym/trade_sentinel/internal/infrastructure/logger"
	"github.com/maksym/trade_sentinel/internal/infrastructure/notifier"
	"github.com/maksym/trade_sentinel/internal/infrastructure/storage"
	"github.com/maksym/trade_sentinel/internal/usecase"
)

// scanner runs one scan cycle per invocation and is triggered externally
// (cron). Exit code 0 covers "nothing to do"; non-zero means lock timeout or
// an unrecoverable data-fetch failure.
func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	timeframe := flag.String("timeframe", "h1", "scan timeframe: m5, h1, h4, d1")
	source := flag.String("source", "", "order source tag (defaults from timeframe)")
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

	tf := domain.Timeframe(*timeframe)
	src := *source
	if src == "" {
		src = defaultSource(tf)
	}

	locks := lock.NewManager(cfg.Lock.Dir, cfg.Lock.PollInterval(), cfg.Lock.MaxWait(), log)
	held, err := locks.Acquire(ctx, cfg.Lock.Name)
	if err != nil {
		log.Error("Failed to acquire job lock", zap.Error(err))
		return 1
	}
	defer held.Release()

	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout(), log)
	notify := notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout(), log)
	risk := usecase.NewRiskManager(store, cfg.Risk, log)
	builder := usecase.NewPayloadBuilder(cfg.Scanner, log)
	scan := usecase.NewScanService(client, client, usecase.NewCorrelationGuard(),
		builder, risk, store, notify, cfg.Scanner, log)

	if err := scan.Run(ctx, tf, src); err != nil {
		log.Error("Scan failed", zap.Error(err))
		return 1
	}
	return 0
}

func defaultSource(tf domain.Timeframe) string {
	switch tf {
	case domain.TimeframeM5:
		return "scalp"
	case domain.TimeframeH1:
		return "intraday"
	default:
		return "swing"
	}
}
