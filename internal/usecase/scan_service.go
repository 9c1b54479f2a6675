package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/domain"
)

// ScanService runs one scan cycle: fetch the account snapshot once, then for
// every configured instrument score, vet and possibly submit a trade. One
// instrument's failure never aborts the remaining instruments.
type ScanService struct {
	market   domain.MarketDataGateway
	exec     domain.ExecutionGateway
	guard    *CorrelationGuard
	builder  *PayloadBuilder
	risk     *RiskManager
	trades   domain.TradeRepository
	notifier domain.Notifier
	cfg      config.ScannerConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewScanService(
	market domain.MarketDataGateway,
	exec domain.ExecutionGateway,
	guard *CorrelationGuard,
	builder *PayloadBuilder,
	risk *RiskManager,
	trades domain.TradeRepository,
	notifier domain.Notifier,
	cfg config.ScannerConfig,
	logger *zap.Logger,
) *ScanService {
	return &ScanService{
		market:   market,
		exec:     exec,
		guard:    guard,
		builder:  builder,
		risk:     risk,
		trades:   trades,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one scan over all configured instruments. The snapshot fetch
// failing is fatal; everything after that degrades per instrument.
func (s *ScanService) Run(ctx context.Context, timeframe domain.Timeframe, source string) error {
	runID := uuid.NewString()
	snap, err := s.market.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}
	s.logger.Info("Scan started",
		zap.String("run_id", runID),
		zap.String("timeframe", string(timeframe)),
		zap.Int("open_positions", len(snap.Positions)))

	for _, instrument := range s.cfg.Instruments {
		if err := s.scanInstrument(ctx, runID, instrument, timeframe, source, snap); err != nil {
			s.logger.Error("Instrument scan failed, continuing",
				zap.String("instrument", instrument), zap.Error(err))
		}
	}
	return nil
}

func (s *ScanService) scanInstrument(ctx context.Context, runID, instrument string, timeframe domain.Timeframe, source string, snap *domain.AccountSnapshot) error {
	tech, err := s.market.GetTechnicals(ctx, instrument, timeframe)
	if err != nil {
		return err
	}
	if tech.Signal == nil {
		s.journal(ctx, runID, instrument, timeframe, "no actionable signal")
		return nil
	}
	signal := tech.Signal

	minConviction := domain.Conviction(s.cfg.MinConviction)
	if !signal.Conviction.AtLeast(minConviction) {
		s.journal(ctx, runID, instrument, timeframe,
			fmt.Sprintf("conviction %s below %s, no auto-execution", signal.Conviction, minConviction))
		return nil
	}

	// Duplicate-instrument check comes before correlation: any existing
	// exposure on the same instrument blocks outright.
	if snap.HasExposure(instrument) {
		s.journal(ctx, runID, instrument, timeframe, "already exposed, skipping")
		return nil
	}

	if ok, reason, err := s.risk.CanTrade(ctx, snap.Account.Balance); err != nil {
		return err
	} else if !ok {
		s.journal(ctx, runID, instrument, timeframe, "risk gate: "+reason)
		s.logger.Info("Risk gate blocked trade",
			zap.String("instrument", instrument), zap.String("reason", reason))
		return nil
	}

	if res := s.guard.Check(instrument, signal.Direction, snap); !res.OK {
		s.journal(ctx, runID, instrument, timeframe,
			fmt.Sprintf("blocked (%s) by %s", res.Reason, res.ConflictingInstrument))
		s.logger.Info("Correlation guard blocked trade",
			zap.String("instrument", instrument),
			zap.String("reason", res.Reason),
			zap.String("conflicting", res.ConflictingInstrument))
		return nil
	}

	payload, err := s.builder.Build(signal, tech)
	if err != nil {
		if errors.Is(err, ErrUnbuildable) {
			s.journal(ctx, runID, instrument, timeframe, "unbuildable: "+err.Error())
			return nil
		}
		return err
	}
	payload.Source = source
	payload.ClientOrderID = uuid.NewString()

	result, err := s.exec.SubmitTrade(ctx, payload)
	if err != nil {
		return err
	}
	if !result.OK() {
		// Execution rejection: logged with the gateway's message, no retry,
		// no notification.
		s.logger.Warn("Trade rejected by execution gateway",
			zap.String("instrument", instrument), zap.String("message", result.Message))
		s.journal(ctx, runID, instrument, timeframe, "rejected: "+result.Message)
		return nil
	}

	if _, err := s.trades.SaveTrade(ctx, &domain.TradeRecord{
		Instrument:    instrument,
		Direction:     signal.Direction,
		EntryPrice:    signal.ReferencePrice,
		StopDistance:  payload.StopDistance,
		LimitDistance: payload.LimitDistance,
		Conviction:    signal.Conviction,
		Strategy:      signal.Strategy,
		Source:        source,
		Status:        domain.TradeExecuted,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Error("Failed to journal trade locally", zap.Error(err))
	}

	if err := s.notifier.Notify(ctx, fmt.Sprintf("📈 Submitted %s %s %s (%s, conviction %s)",
		payload.OrderType, instrument, signal.Direction, source, signal.Conviction)); err != nil {
		s.logger.Warn("Notification failed", zap.Error(err))
	}
	s.journal(ctx, runID, instrument, timeframe, "submitted "+string(payload.OrderType))
	return nil
}

// journal posts a fire-and-forget analysis record; the gateway swallows
// failures.
func (s *ScanService) journal(ctx context.Context, runID, instrument string, timeframe domain.Timeframe, outcome string) {
	s.market.PostJournal(ctx, map[string]any{
		"run_id":     runID,
		"instrument": instrument,
		"timeframe":  string(timeframe),
		"outcome":    outcome,
		"created_at": s.now().Format(time.RFC3339),
	})
}
