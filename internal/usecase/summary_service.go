package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

// SummaryService produces the daily digest. Read-only: it takes no lock and
// mutates nothing.
type SummaryService struct {
	market    domain.MarketDataGateway
	decisions domain.DecisionRepository
	trades    domain.TradeRepository
	notifier  domain.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewSummaryService(
	market domain.MarketDataGateway,
	decisions domain.DecisionRepository,
	trades domain.TradeRepository,
	notifier domain.Notifier,
	logger *zap.Logger,
) *SummaryService {
	return &SummaryService{
		market:    market,
		decisions: decisions,
		trades:    trades,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run assembles and sends the digest for the current day.
func (s *SummaryService) Run(ctx context.Context) error {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily summary %s\n", now.Format("2006-01-02"))

	snap, err := s.market.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("summary aborted: %w", err)
	}
	fmt.Fprintf(&b, "\nOpen positions: %d\n", len(snap.Positions))
	for _, p := range snap.Positions {
		fmt.Fprintf(&b, "  %s %s %.2f @ %.5f (P&L %.2f)\n",
			p.Instrument, p.Direction, p.Size, p.EntryPrice, p.UnrealizedPnL)
	}
	if len(snap.PendingOrders) > 0 {
		fmt.Fprintf(&b, "Pending orders: %d\n", len(snap.PendingOrders))
	}

	decisions, err := s.decisions.ListDecisionsSince(ctx, dayStart)
	if err != nil {
		return fmt.Errorf("failed to read decisions: %w", err)
	}
	counts := make(map[domain.MonitorAction]int)
	for _, d := range decisions {
		counts[d.Action]++
	}
	if len(counts) > 0 {
		b.WriteString("\nMonitor activity:\n")
		for _, action := range []domain.MonitorAction{
			domain.ActionBreakeven, domain.ActionTrailProfit, domain.ActionRunnerTrail,
			domain.ActionWarnNearStop, domain.ActionCancelPending, domain.ActionCloseDetected,
		} {
			if n := counts[action]; n > 0 {
				fmt.Fprintf(&b, "  %s: %d\n", action, n)
			}
		}
	}

	dayClosed, err := s.trades.CountClosedSince(ctx, dayStart)
	if err != nil {
		return fmt.Errorf("failed to count closed trades: %w", err)
	}
	dayPnL, err := s.trades.SumPnLSince(ctx, dayStart)
	if err != nil {
		return fmt.Errorf("failed to sum closed trades: %w", err)
	}
	fmt.Fprintf(&b, "\nClosed today: %d trades, P&L %.2f\n", dayClosed, dayPnL)
	fmt.Fprintf(&b, "Account balance: %.2f %s\n", snap.Account.Balance, snap.Account.Currency)

	if err := s.notifier.Notify(ctx, b.String()); err != nil {
		s.logger.Warn("Summary notification failed", zap.Error(err))
	}
	return nil
}
