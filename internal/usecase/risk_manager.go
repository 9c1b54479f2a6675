package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/domain"
)

// RiskManager enforces loss cooldowns and daily limits from the local trade
// journal before the scanner may submit anything.
type RiskManager struct {
	trades domain.TradeRepository
	cfg    config.RiskConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewRiskManager(trades domain.TradeRepository, cfg config.RiskConfig, logger *zap.Logger) *RiskManager {
	return &RiskManager{
		trades: trades,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the manager's clock. Tests only.
func (r *RiskManager) SetClock(now func() time.Time) { r.now = now }

// CanTrade runs the combined pre-trade checks: loss cooldown, daily trade
// count, daily loss limit against the account balance.
func (r *RiskManager) CanTrade(ctx context.Context, accountBalance float64) (bool, string, error) {
	ok, reason, err := r.checkCooldown(ctx)
	if err != nil || !ok {
		return ok, reason, err
	}
	ok, reason, err = r.checkDailyTradeCount(ctx)
	if err != nil || !ok {
		return ok, reason, err
	}
	return r.checkDailyLossLimit(ctx, accountBalance)
}

// checkCooldown applies an exponential backoff after consecutive losses:
// base hours doubled for every loss past the threshold, reset by a win.
func (r *RiskManager) checkCooldown(ctx context.Context) (bool, string, error) {
	if !r.cfg.CooldownEnabled {
		return true, "cooldown disabled", nil
	}

	recent, err := r.trades.ListClosedTrades(ctx, 20)
	if err != nil {
		return false, "", fmt.Errorf("failed to read trade history: %w", err)
	}

	losses := 0
	var lastLoss time.Time
	for _, t := range recent {
		if t.PnL >= 0 {
			break
		}
		losses++
		if lastLoss.IsZero() {
			lastLoss = t.ClosedAt
		}
	}

	if losses < r.cfg.CooldownAfterLosses {
		return true, fmt.Sprintf("no cooldown (%d consecutive losses)", losses), nil
	}

	excess := losses - r.cfg.CooldownAfterLosses
	cooldownHours := r.cfg.CooldownHoursBase * math.Pow(2, float64(excess))
	cooldownEnd := lastLoss.Add(time.Duration(cooldownHours * float64(time.Hour)))
	now := r.now()

	if now.Before(cooldownEnd) {
		remaining := cooldownEnd.Sub(now).Round(time.Minute)
		return false, fmt.Sprintf("cooldown active: %d consecutive losses, wait %s", losses, remaining), nil
	}
	return true, fmt.Sprintf("cooldown expired (%d consecutive losses)", losses), nil
}

func (r *RiskManager) checkDailyTradeCount(ctx context.Context) (bool, string, error) {
	if !r.cfg.DailyLimitsEnabled {
		return true, "daily limits disabled", nil
	}
	count, err := r.trades.CountTradesSince(ctx, r.startOfDay())
	if err != nil {
		return false, "", fmt.Errorf("failed to count daily trades: %w", err)
	}
	if count >= r.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d/%d", count, r.cfg.MaxDailyTrades), nil
	}
	return true, fmt.Sprintf("daily trades: %d/%d", count, r.cfg.MaxDailyTrades), nil
}

func (r *RiskManager) checkDailyLossLimit(ctx context.Context, accountBalance float64) (bool, string, error) {
	if !r.cfg.DailyLimitsEnabled {
		return true, "daily limits disabled", nil
	}
	pnl, err := r.trades.SumPnLSince(ctx, r.startOfDay())
	if err != nil {
		return false, "", fmt.Errorf("failed to sum daily pnl: %w", err)
	}
	limit := accountBalance * r.cfg.MaxDailyLossPercent / 100
	if pnl <= -limit {
		return false, fmt.Sprintf("daily loss limit reached: %.2f (limit -%.2f)", pnl, limit), nil
	}
	return true, fmt.Sprintf("daily pnl %.2f (limit -%.2f)", pnl, limit), nil
}

func (r *RiskManager) startOfDay() time.Time {
	now := r.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
