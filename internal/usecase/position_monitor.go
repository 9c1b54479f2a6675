package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/domain"
)

// PositionMonitor applies one protective action per open position each
// cycle: breakeven move, profit trail, near-stop warning, runner trailing or
// nothing. Pending orders past their time-to-live are cancelled. Multi-cycle
// state (runner trailing, warning dedup) is persisted so a crash or restart
// never regresses a protective stop.
type PositionMonitor struct {
	market   domain.MarketDataGateway
	exec     domain.ExecutionGateway
	runners  domain.RunnerStateRepository
	decision domain.DecisionRepository
	warnings domain.WarningRepository
	trades   domain.TradeRepository
	notifier domain.Notifier
	cfg      config.MonitorConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewPositionMonitor(
	market domain.MarketDataGateway,
	exec domain.ExecutionGateway,
	runners domain.RunnerStateRepository,
	decision domain.DecisionRepository,
	warnings domain.WarningRepository,
	trades domain.TradeRepository,
	notifier domain.Notifier,
	cfg config.MonitorConfig,
	logger *zap.Logger,
) *PositionMonitor {
	return &PositionMonitor{
		market:   market,
		exec:     exec,
		runners:  runners,
		decision: decision,
		warnings: warnings,
		trades:   trades,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the monitor's clock. Tests only.
func (m *PositionMonitor) SetClock(now func() time.Time) { m.now = now }

// RunCycle performs one full monitoring pass. A snapshot fetch failure is
// fatal for the run; any per-position failure is logged and the remaining
// positions are still processed.
func (m *PositionMonitor) RunCycle(ctx context.Context) error {
	runID := uuid.NewString()
	snap, err := m.market.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("monitor cycle aborted: %w", err)
	}
	m.logger.Info("Monitor cycle started",
		zap.String("run_id", runID),
		zap.Int("positions", len(snap.Positions)),
		zap.Int("pending_orders", len(snap.PendingOrders)))

	for _, pos := range snap.Positions {
		if err := m.evaluatePosition(ctx, runID, pos); err != nil {
			m.logger.Error("Position evaluation failed",
				zap.String("instrument", pos.Instrument), zap.Error(err))
		}
	}
	for _, ord := range snap.PendingOrders {
		if err := m.evaluatePending(ctx, runID, ord); err != nil {
			m.logger.Error("Pending order evaluation failed",
				zap.String("instrument", ord.Instrument), zap.Error(err))
		}
	}

	m.detectCloses(ctx, runID, snap)
	m.purgeStaleState(ctx, snap)
	return nil
}

func (m *PositionMonitor) evaluatePosition(ctx context.Context, runID string, pos *domain.Position) error {
	if m.isRunner(pos) {
		return m.evaluateRunner(ctx, runID, pos)
	}
	if !pos.HasStop() && !pos.HasTakeProfit() {
		// Nothing to manage against; the gateway's default protective
		// orders are attached at submission.
		return nil
	}

	// An absent level contributes zero progress; the states that depend on
	// it are simply not entered.
	var progressTarget, progressStop float64
	if pos.HasTakeProfit() {
		progressTarget = progressFraction(pos.EntryPrice, pos.TakeProfit, pos.CurrentPrice)
	}
	if pos.HasStop() {
		progressStop = progressFraction(pos.EntryPrice, pos.StopLoss, pos.CurrentPrice)
	}

	switch {
	case pos.HasTakeProfit() && progressTarget >= m.cfg.TrailPct:
		return m.trailProfit(ctx, runID, pos)
	case pos.HasTakeProfit() && progressTarget >= m.cfg.BreakevenPct:
		return m.moveToBreakeven(ctx, runID, pos)
	case pos.HasStop() && progressStop >= m.cfg.WarnStopPct:
		return m.warnNearStop(ctx, runID, pos, progressStop)
	default:
		// Out of the warning zone again: allow a future warning to fire.
		if err := m.warnings.ClearWarning(ctx, pos.Instrument, pos.Direction); err != nil {
			m.logger.Warn("Failed to clear warning marker", zap.Error(err))
		}
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			fmt.Sprintf("progress to target %.0f%%", progressTarget*100))
	}
}

// moveToBreakeven sets the stop to the entry price once. Re-running with
// unchanged data is a no-op because entry is no longer an improvement.
func (m *PositionMonitor) moveToBreakeven(ctx context.Context, runID string, pos *domain.Position) error {
	candidate := pos.EntryPrice
	if !improvesStop(pos.Direction, candidate, pos.StopLoss) {
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			"breakeven already set")
	}
	return m.moveStop(ctx, runID, pos, domain.ActionBreakeven, candidate,
		fmt.Sprintf("50%% to target reached, stop to breakeven %.5f", candidate))
}

// trailProfit locks a configured share of the open profit, but only ever in
// the profit-protecting direction.
func (m *PositionMonitor) trailProfit(ctx context.Context, runID string, pos *domain.Position) error {
	candidate := pos.EntryPrice + (pos.CurrentPrice-pos.EntryPrice)*m.cfg.TrailLockPct
	if !improvesStop(pos.Direction, candidate, pos.StopLoss) {
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			"trail candidate not an improvement")
	}
	return m.moveStop(ctx, runID, pos, domain.ActionTrailProfit, candidate,
		fmt.Sprintf("75%% to target reached, locking profit at %.5f", candidate))
}

// warnNearStop notifies once while the position stays inside the warning
// zone. No order mutation.
func (m *PositionMonitor) warnNearStop(ctx context.Context, runID string, pos *domain.Position, progressStop float64) error {
	warned, err := m.warnings.WasWarned(ctx, pos.Instrument, pos.Direction)
	if err != nil {
		return err
	}
	if warned {
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			"near stop, already warned")
	}
	if err := m.warnings.MarkWarned(ctx, pos.Instrument, pos.Direction); err != nil {
		return err
	}
	m.notify(ctx, fmt.Sprintf("⚠️ %s %s is %.0f%% of the way to its stop (price %.5f, stop %.5f)",
		pos.Instrument, pos.Direction, progressStop*100, pos.CurrentPrice, pos.StopLoss))
	return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionWarnNearStop, 0, 0,
		fmt.Sprintf("%.0f%% toward stop", progressStop*100))
}

// isRunner matches the runner signature: scalp-style strategy tag with no
// take-profit order left attached (the first target leg already filled).
func (m *PositionMonitor) isRunner(pos *domain.Position) bool {
	return strings.Contains(strings.ToLower(pos.Strategy), "scalp") && !pos.HasTakeProfit()
}

func (m *PositionMonitor) evaluateRunner(ctx context.Context, runID string, pos *domain.Position) error {
	state, err := m.runners.GetRunnerState(ctx, pos.Instrument, pos.Direction)
	if err != nil {
		return err
	}
	trail := m.shortHorizonATR(ctx, pos.Instrument)

	if state == nil {
		return m.startRunner(ctx, runID, pos, trail)
	}

	state.UpdatePeak(pos.CurrentPrice)
	if trail <= 0 {
		trail = state.TrailDistance // volatility unavailable, keep the recorded distance
	}
	if trail <= 0 {
		// No usable trail distance. A zero trail would put the candidate at
		// the peak itself and close the runner at market, so keep the stop.
		state.UpdatedAt = m.now()
		if err := m.runners.SaveRunnerState(ctx, state); err != nil {
			return err
		}
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			"no trail distance available")
	}
	candidate := state.CandidateStop(trail)

	moved := false
	if improvesStop(pos.Direction, candidate, pos.StopLoss) && protectsEntry(pos.Direction, candidate, state.EntryPrice) {
		result, err := m.exec.ModifyPosition(ctx, &domain.ModifyRequest{
			Instrument:  pos.Instrument,
			Direction:   pos.Direction,
			NewStopLoss: candidate,
			Reasoning:   fmt.Sprintf("runner trail: peak %.5f, trail %.5f", state.PeakPrice, trail),
		})
		if err != nil {
			return err
		}
		if result.OK() {
			moved = true
			m.notify(ctx, fmt.Sprintf("🏃 Runner %s %s stop trailed to %.5f (peak %.5f)",
				pos.Instrument, pos.Direction, candidate, state.PeakPrice))
			if err := m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionRunnerTrail,
				pos.StopLoss, candidate, "trail advanced"); err != nil {
				return err
			}
		} else {
			m.logger.Warn("Runner stop move rejected",
				zap.String("instrument", pos.Instrument), zap.String("message", result.Message))
		}
	}

	state.TrailDistance = trail
	state.UpdatedAt = m.now()
	if err := m.runners.SaveRunnerState(ctx, state); err != nil {
		return err
	}
	if !moved {
		return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionHold, 0, 0,
			"runner trail unchanged")
	}
	return nil
}

// startRunner does the one-shot first-detection handling: stop to breakeven,
// stop order resized to the full remaining position, state persisted.
func (m *PositionMonitor) startRunner(ctx context.Context, runID string, pos *domain.Position, trail float64) error {
	if trail <= 0 {
		// No volatility reading at detection time: seed the trail with the
		// instrument's default stop so later cycles have a fallback.
		if spec, err := domain.GetInstrument(pos.Instrument); err == nil {
			trail = spec.DefaultStop
		}
	}

	result, err := m.exec.ModifyPosition(ctx, &domain.ModifyRequest{
		Instrument:     pos.Instrument,
		Direction:      pos.Direction,
		NewStopLoss:    pos.EntryPrice,
		ResizeStopFull: true,
		Reasoning:      "runner detected: stop to breakeven, full remaining size",
	})
	if err != nil {
		return err
	}
	if !result.OK() {
		m.logger.Warn("Runner breakeven move rejected",
			zap.String("instrument", pos.Instrument), zap.String("message", result.Message))
		return nil
	}

	state := &domain.RunnerState{
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		EntryPrice:    pos.EntryPrice,
		TrailDistance: trail,
		PeakPrice:     pos.CurrentPrice,
		BreakevenSet:  true,
		UpdatedAt:     m.now(),
	}
	if err := m.runners.SaveRunnerState(ctx, state); err != nil {
		return err
	}
	m.notify(ctx, fmt.Sprintf("🏃 Runner detected: %s %s, stop moved to breakeven %.5f",
		pos.Instrument, pos.Direction, pos.EntryPrice))
	return m.record(ctx, runID, pos.Instrument, pos.Direction, domain.ActionRunnerTrail,
		pos.StopLoss, pos.EntryPrice, "runner detected, breakeven set")
}

// evaluatePending cancels a pending entry order once it exceeds the
// time-to-live for its source tag.
func (m *PositionMonitor) evaluatePending(ctx context.Context, runID string, ord *domain.PendingOrder) error {
	ttl := m.cfg.TTLFor(ord.Source)
	age := ord.Age(m.now())
	if age <= ttl {
		return nil
	}

	result, err := m.exec.CancelOrder(ctx, &domain.CancelRequest{
		Instrument: ord.Instrument,
		Direction:  ord.Direction,
		Reasoning:  fmt.Sprintf("pending order aged %s past %s TTL", age.Round(time.Minute), ttl),
	})
	if err != nil {
		return err
	}
	if !result.OK() {
		m.logger.Warn("Pending order cancellation rejected",
			zap.String("instrument", ord.Instrument), zap.String("message", result.Message))
		return nil
	}
	m.notify(ctx, fmt.Sprintf("🗑 Cancelled stale %s order: %s %s (age %s, TTL %s)",
		ord.Source, ord.Instrument, ord.Direction, age.Round(time.Minute), ttl))
	return m.record(ctx, runID, ord.Instrument, ord.Direction, domain.ActionCancelPending, 0, 0,
		fmt.Sprintf("aged %s, ttl %s", age.Round(time.Minute), ttl))
}

// detectCloses marks journaled trades whose position disappeared from the
// broker snapshot, with an approximate P&L from the last known price.
func (m *PositionMonitor) detectCloses(ctx context.Context, runID string, snap *domain.AccountSnapshot) {
	open, err := m.trades.ListOpenTrades(ctx)
	if err != nil {
		m.logger.Error("Failed to list open trades", zap.Error(err))
		return
	}
	for _, t := range open {
		if snap.FindPosition(t.Instrument, t.Direction) != nil {
			continue
		}
		pnl := m.approximatePnL(ctx, t)
		if err := m.trades.CloseTrade(ctx, t.ID, pnl, m.now()); err != nil {
			m.logger.Error("Failed to close trade", zap.Int64("trade_id", t.ID), zap.Error(err))
			continue
		}
		m.notify(ctx, fmt.Sprintf("✅ %s %s closed, approx P&L %.2f", t.Instrument, t.Direction, pnl))
		_ = m.record(ctx, runID, t.Instrument, t.Direction, domain.ActionCloseDetected, 0, 0,
			fmt.Sprintf("trade #%d, pnl %.2f", t.ID, pnl))
	}
}

func (m *PositionMonitor) approximatePnL(ctx context.Context, t *domain.TradeRecord) float64 {
	tech, err := m.market.GetTechnicals(ctx, t.Instrument, "")
	if err != nil || tech.Price <= 0 || t.EntryPrice <= 0 {
		return 0
	}
	if t.Direction == domain.DirectionBuy {
		return (tech.Price - t.EntryPrice) * t.Size
	}
	return (t.EntryPrice - tech.Price) * t.Size
}

// purgeStaleState removes runner state and warning markers whose
// (instrument, direction) no longer matches any open position.
func (m *PositionMonitor) purgeStaleState(ctx context.Context, snap *domain.AccountSnapshot) {
	states, err := m.runners.ListRunnerStates(ctx)
	if err != nil {
		m.logger.Error("Failed to list runner states", zap.Error(err))
		return
	}
	for _, state := range states {
		if snap.FindPosition(state.Instrument, state.Direction) != nil {
			continue
		}
		if err := m.runners.DeleteRunnerState(ctx, state.Instrument, state.Direction); err != nil {
			m.logger.Error("Failed to purge runner state",
				zap.String("instrument", state.Instrument), zap.Error(err))
			continue
		}
		_ = m.warnings.ClearWarning(ctx, state.Instrument, state.Direction)
		m.logger.Info("Purged stale runner state",
			zap.String("instrument", state.Instrument), zap.String("direction", string(state.Direction)))
	}
}

func (m *PositionMonitor) shortHorizonATR(ctx context.Context, instrument string) float64 {
	tech, err := m.market.GetTechnicals(ctx, instrument, domain.TimeframeM5)
	if err != nil {
		m.logger.Warn("Short-horizon volatility unavailable",
			zap.String("instrument", instrument), zap.Error(err))
		return 0
	}
	return tech.ATRFor(domain.TimeframeM5)
}

// moveStop issues the modification and notifies only on confirmed success.
func (m *PositionMonitor) moveStop(ctx context.Context, runID string, pos *domain.Position, action domain.MonitorAction, candidate float64, reasoning string) error {
	result, err := m.exec.ModifyPosition(ctx, &domain.ModifyRequest{
		Instrument:  pos.Instrument,
		Direction:   pos.Direction,
		NewStopLoss: candidate,
		Reasoning:   reasoning,
	})
	if err != nil {
		return err
	}
	if !result.OK() {
		m.logger.Warn("Stop move rejected",
			zap.String("instrument", pos.Instrument),
			zap.String("action", string(action)),
			zap.String("message", result.Message))
		return nil
	}
	m.notify(ctx, fmt.Sprintf("🛡 %s %s: %s", pos.Instrument, pos.Direction, reasoning))
	return m.record(ctx, runID, pos.Instrument, pos.Direction, action, pos.StopLoss, candidate, reasoning)
}

func (m *PositionMonitor) record(ctx context.Context, runID, instrument string, direction domain.Direction, action domain.MonitorAction, oldStop, newStop float64, detail string) error {
	return m.decision.AppendDecision(ctx, &domain.Decision{
		RunID:      runID,
		Instrument: instrument,
		Direction:  direction,
		Action:     action,
		OldStop:    oldStop,
		NewStop:    newStop,
		Detail:     detail,
		CreatedAt:  m.now(),
	})
}

func (m *PositionMonitor) notify(ctx context.Context, message string) {
	if err := m.notifier.Notify(ctx, message); err != nil {
		m.logger.Warn("Notification failed", zap.Error(err))
	}
}

// progressFraction returns the direction-aware share of the entry-to-level
// distance already covered by the current price. Zero when entry equals the
// level, to avoid division by zero.
func progressFraction(entry, level, current float64) float64 {
	span := level - entry
	if span == 0 {
		return 0
	}
	return (current - entry) / span
}

// improvesStop reports whether the candidate is strictly better than the
// current stop in the profit-protecting direction. A missing stop is always
// improvable.
func improvesStop(direction domain.Direction, candidate, current float64) bool {
	if current == 0 {
		return true
	}
	if direction == domain.DirectionBuy {
		return candidate > current
	}
	return candidate < current
}

// protectsEntry rejects candidates on the adverse side of the entry price; a
// trailing stop never regresses past breakeven.
func protectsEntry(direction domain.Direction, candidate, entry float64) bool {
	if direction == domain.DirectionBuy {
		return candidate >= entry
	}
	return candidate <= entry
}
