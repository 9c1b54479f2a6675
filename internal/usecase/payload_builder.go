package usecase

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/config"
	"github.com/maksym/trade_sentinel/internal/domain"
)

// ErrUnbuildable means level data was too degenerate to derive a valid
// payload. Callers skip the cycle; they must never retry with stale data.
var ErrUnbuildable = errors.New("no valid order payload could be constructed")

// PayloadBuilder converts a scored signal plus live levels and volatility
// into a concrete, risk-bounded order request.
type PayloadBuilder struct {
	cfg    config.ScannerConfig
	logger *zap.Logger
}

func NewPayloadBuilder(cfg config.ScannerConfig, logger *zap.Logger) *PayloadBuilder {
	return &PayloadBuilder{cfg: cfg, logger: logger}
}

// Build derives the order payload for a signal. When support, resistance or
// volatility is missing the payload degrades to a bare market order with no
// explicit stop/limit, deferring sizing to the execution gateway.
func (b *PayloadBuilder) Build(signal *domain.TradeSignal, tech *domain.Technicals) (*domain.OrderPayload, error) {
	spec, err := domain.GetInstrument(signal.Instrument)
	if err != nil {
		return nil, err
	}
	ref := signal.ReferencePrice
	if ref <= 0 {
		return nil, fmt.Errorf("%w: no reference price for %s", ErrUnbuildable, signal.Instrument)
	}

	// Shortest scan interval sizes directly off short-horizon volatility;
	// the S/R ladder is too coarse at that resolution.
	if signal.Timeframe == domain.TimeframeM5 {
		return b.buildScalp(signal, tech, spec), nil
	}

	vol := tech.ATRFor(signal.Timeframe)
	if len(tech.Levels.Support) == 0 || len(tech.Levels.Resistance) == 0 || vol <= 0 {
		return b.bareMarket(signal, "missing levels or volatility"), nil
	}

	var plan *orderPlan
	switch signal.SignalType {
	case domain.SignalTrend:
		plan, err = b.planTrend(signal, tech.Levels, vol)
	case domain.SignalMeanReversion:
		plan, err = b.planMeanReversion(signal, tech.Levels, vol)
	default:
		plan, err = b.planMixed(signal, tech.Levels, vol)
	}
	if err != nil {
		return nil, err
	}

	payload := &domain.OrderPayload{
		Instrument: signal.Instrument,
		Direction:  signal.Direction,
		OrderType:  plan.orderType,
		Conviction: signal.Conviction,
		Reasoning:  plan.reasoning,
	}
	if plan.orderType != domain.OrderMarket {
		payload.EntryPrice = plan.entry
	}
	b.applyGates(payload, plan.stopDistance, plan.limitDistance, spec)
	return payload, nil
}

type orderPlan struct {
	orderType     domain.OrderType
	entry         float64 // execution reference: order level, or current price for MARKET
	stopDistance  float64
	limitDistance float64
	reasoning     string
}

// planTrend enters on breakout: BUY at the nearest resistance, stop just
// below the nearest support with a volatility buffer, target at the next
// resistance out.
func (b *PayloadBuilder) planTrend(signal *domain.TradeSignal, levels domain.Levels, vol float64) (*orderPlan, error) {
	ref := signal.ReferencePrice
	buffer := b.cfg.StopBufferATRFraction * vol

	var entry, stop, target float64
	var ok bool
	if signal.Direction == domain.DirectionBuy {
		if entry, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for trend BUY", ErrUnbuildable, ref)
		}
		if stop, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for trend BUY", ErrUnbuildable, ref)
		}
		stop -= buffer
		if target, ok = nearestStrictlyAbove(levels.Resistance, entry); !ok {
			target = entry + b.cfg.TargetATRMultiple*vol
		}
	} else {
		if entry, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for trend SELL", ErrUnbuildable, ref)
		}
		if stop, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for trend SELL", ErrUnbuildable, ref)
		}
		stop += buffer
		if target, ok = nearestStrictlyBelow(levels.Support, entry); !ok {
			target = entry - b.cfg.TargetATRMultiple*vol
		}
	}

	return b.finishPlan(signal, domain.OrderStop, entry, stop, target, vol,
		fmt.Sprintf("trend breakout entry at %.5f", entry))
}

// planMeanReversion fades back to the nearest level on the opposite side:
// BUY at the nearest support (limit), stop beyond the next level out, target
// at the nearest opposite level.
func (b *PayloadBuilder) planMeanReversion(signal *domain.TradeSignal, levels domain.Levels, vol float64) (*orderPlan, error) {
	ref := signal.ReferencePrice
	buffer := b.cfg.StopBufferATRFraction * vol

	var entry, stop, target float64
	var ok bool
	if signal.Direction == domain.DirectionBuy {
		if entry, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for reversion BUY", ErrUnbuildable, ref)
		}
		if stop, ok = nearestStrictlyBelow(levels.Support, entry); ok {
			stop -= buffer
		} else {
			stop = entry - b.cfg.TargetATRMultiple*vol
		}
		if target, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for reversion BUY", ErrUnbuildable, ref)
		}
	} else {
		if entry, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for reversion SELL", ErrUnbuildable, ref)
		}
		if stop, ok = nearestStrictlyAbove(levels.Resistance, entry); ok {
			stop += buffer
		} else {
			stop = entry + b.cfg.TargetATRMultiple*vol
		}
		if target, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for reversion SELL", ErrUnbuildable, ref)
		}
	}

	return b.finishPlan(signal, domain.OrderLimit, entry, stop, target, vol,
		fmt.Sprintf("mean reversion entry at %.5f", entry))
}

// planMixed always executes immediately, with stop and target still derived
// from the nearest support/resistance pair.
func (b *PayloadBuilder) planMixed(signal *domain.TradeSignal, levels domain.Levels, vol float64) (*orderPlan, error) {
	ref := signal.ReferencePrice
	buffer := b.cfg.StopBufferATRFraction * vol

	var stop, target float64
	var ok bool
	if signal.Direction == domain.DirectionBuy {
		if stop, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for mixed BUY", ErrUnbuildable, ref)
		}
		stop -= buffer
		if target, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for mixed BUY", ErrUnbuildable, ref)
		}
	} else {
		if stop, ok = nearestAtOrAbove(levels.Resistance, ref); !ok {
			return nil, fmt.Errorf("%w: no resistance above %.5f for mixed SELL", ErrUnbuildable, ref)
		}
		stop += buffer
		if target, ok = nearestAtOrBelow(levels.Support, ref); !ok {
			return nil, fmt.Errorf("%w: no support below %.5f for mixed SELL", ErrUnbuildable, ref)
		}
	}

	return &orderPlan{
		orderType:     domain.OrderMarket,
		entry:         ref,
		stopDistance:  math.Abs(ref - stop),
		limitDistance: math.Abs(target - ref),
		reasoning:     "mixed signal, market entry against nearest levels",
	}, nil
}

// finishPlan applies the near-price degradation rule and computes distances
// from the execution reference.
func (b *PayloadBuilder) finishPlan(signal *domain.TradeSignal, pendingType domain.OrderType, entry, stop, target, vol float64, reasoning string) (*orderPlan, error) {
	ref := signal.ReferencePrice

	orderType := pendingType
	execRef := entry
	if math.Abs(ref-entry) <= b.cfg.NearEntryATRFraction*vol {
		// Already at the level: a pending order would either chase or never
		// fill, so execute at the current price instead.
		orderType = domain.OrderMarket
		execRef = ref
		reasoning += " (near price, degraded to market)"
	}

	stopDistance := execRef - stop
	limitDistance := target - execRef
	if signal.Direction == domain.DirectionSell {
		stopDistance = stop - execRef
		limitDistance = execRef - target
	}
	if stopDistance <= 0 || limitDistance <= 0 {
		return nil, fmt.Errorf("%w: degenerate levels for %s %s (stop=%.5f target=%.5f ref=%.5f)",
			ErrUnbuildable, signal.Instrument, signal.Direction, stop, target, execRef)
	}

	return &orderPlan{
		orderType:     orderType,
		entry:         execRef,
		stopDistance:  stopDistance,
		limitDistance: limitDistance,
		reasoning:     reasoning,
	}, nil
}

// buildScalp sizes stop and target as fixed multiples of the short-horizon
// volatility measure, ignoring the S/R ladder.
func (b *PayloadBuilder) buildScalp(signal *domain.TradeSignal, tech *domain.Technicals, spec domain.InstrumentSpec) *domain.OrderPayload {
	vol := tech.ATRFor(domain.TimeframeM5)
	if vol <= 0 {
		return b.bareMarket(signal, "no short-horizon volatility")
	}
	payload := &domain.OrderPayload{
		Instrument: signal.Instrument,
		Direction:  signal.Direction,
		OrderType:  domain.OrderMarket,
		Conviction: signal.Conviction,
		Reasoning:  fmt.Sprintf("scalp sizing from m5 ATR %.5f", vol),
	}
	b.applyGates(payload, b.cfg.ScalpStopATRMultiple*vol, b.cfg.ScalpTargetATRMultiple*vol, spec)
	return payload
}

func (b *PayloadBuilder) bareMarket(signal *domain.TradeSignal, why string) *domain.OrderPayload {
	b.logger.Debug("Degrading to bare market order",
		zap.String("instrument", signal.Instrument), zap.String("reason", why))
	return &domain.OrderPayload{
		Instrument: signal.Instrument,
		Direction:  signal.Direction,
		OrderType:  domain.OrderMarket,
		Conviction: signal.Conviction,
		Reasoning:  "degraded to gateway default sizing: " + why,
	}
}

// applyGates enforces the per-instrument minimum stop and the 1:1
// reward:risk floor. A violation drops the explicit sizing entirely rather
// than submitting an artificially tight stop.
func (b *PayloadBuilder) applyGates(payload *domain.OrderPayload, stopDistance, limitDistance float64, spec domain.InstrumentSpec) {
	if stopDistance < spec.MinStopDistance {
		b.logger.Debug("Stop below instrument minimum, dropping explicit sizing",
			zap.String("instrument", spec.Key),
			zap.Float64("stop_distance", stopDistance),
			zap.Float64("min", spec.MinStopDistance))
		return
	}
	if limitDistance < stopDistance {
		b.logger.Debug("Reward:risk below 1:1, dropping explicit sizing",
			zap.String("instrument", spec.Key),
			zap.Float64("stop_distance", stopDistance),
			zap.Float64("limit_distance", limitDistance))
		return
	}
	payload.StopDistance = stopDistance
	payload.LimitDistance = limitDistance
}

// Level ladder helpers. The gateway does not guarantee ordering, so each
// lookup scans the slice.

func nearestAtOrBelow(levels []float64, ref float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l <= ref && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func nearestAtOrAbove(levels []float64, ref float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l >= ref && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}

func nearestStrictlyBelow(levels []float64, ref float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < ref && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func nearestStrictlyAbove(levels []float64, ref float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > ref && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}
