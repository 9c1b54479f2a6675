package gateway

import (
	"strings"
	"time"

	"github.com/maksym/trade_sentinel/internal/domain"
)

// The upstream service grew organically and different endpoints name the same
// field differently. All fallback key lookups live in this file; the rest of
// the codebase only ever sees the typed domain model.

func normalizePosition(doc map[string]any) *domain.Position {
	return &domain.Position{
		Instrument:    pickString(doc, "instrument", "epic", "symbol"),
		Direction:     normalizeDirection(pickString(doc, "direction", "side")),
		Size:          pickFloat(doc, "size", "quantity", "position_size"),
		EntryPrice:    pickFloat(doc, "entry_price", "avg_price", "open_level"),
		CurrentPrice:  pickFloat(doc, "current_price", "market_price", "last"),
		UnrealizedPnL: pickFloat(doc, "unrealized_pnl", "pnl", "upl"),
		StopLoss:      pickFloat(doc, "stop_loss", "stop_level", "stop_price"),
		TakeProfit:    pickFloat(doc, "take_profit", "limit_level", "tp_price"),
		Strategy:      pickString(doc, "strategy", "strategy_tag"),
	}
}

func normalizePendingOrder(doc map[string]any) *domain.PendingOrder {
	return &domain.PendingOrder{
		Instrument: pickString(doc, "instrument", "epic", "symbol"),
		Direction:  normalizeDirection(pickString(doc, "direction", "side")),
		Source:     pickString(doc, "source", "origin"),
		CreatedAt:  pickTime(doc, "created_at", "create_time", "timestamp"),
	}
}

func normalizeSignal(scoring map[string]any, instrument string, price float64, tf domain.Timeframe) *domain.TradeSignal {
	if len(scoring) == 0 {
		return nil
	}
	direction := normalizeDirection(pickString(scoring, "direction"))
	if direction == "" {
		return nil // scoring produced no actionable idea
	}
	return &domain.TradeSignal{
		Instrument:     instrument,
		Direction:      direction,
		Conviction:     normalizeConviction(pickString(scoring, "conviction")),
		SignalType:     normalizeSignalType(pickString(scoring, "signal_type", "type")),
		ReferencePrice: price,
		Timeframe:      tf,
		Strategy:       pickString(scoring, "strategy"),
	}
}

func normalizeDirection(s string) domain.Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return domain.DirectionBuy
	case "SELL", "SHORT":
		return domain.DirectionSell
	}
	return ""
}

func normalizeConviction(s string) domain.Conviction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return domain.ConvictionHigh
	case "MEDIUM", "MED":
		return domain.ConvictionMedium
	}
	return domain.ConvictionLow
}

func normalizeSignalType(s string) domain.SignalType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trend", "breakout":
		return domain.SignalTrend
	case "mean_reversion", "mean-reversion", "reversion", "fade":
		return domain.SignalMeanReversion
	}
	return domain.SignalMixed
}

func pickString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func pickFloat(doc map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}

func pickTime(doc map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed
			}
		case float64:
			// Unix seconds, or milliseconds for values past the year 33658.
			if t > 1e12 {
				return time.UnixMilli(int64(t)).UTC()
			}
			return time.Unix(int64(t), 0).UTC()
		}
	}
	return time.Time{}
}
