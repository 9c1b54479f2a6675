package domain

import "time"

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the mirror direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// Position is a normalized snapshot of an open broker-held exposure.
// It is populated once at the gateway boundary; nothing downstream
// re-interprets raw documents.
type Position struct {
	Instrument    string
	Direction     Direction
	Size          float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	StopLoss      float64 // 0 means no stop attached
	TakeProfit    float64 // 0 means no take-profit attached
	Strategy      string  // strategy tag recorded at submission, may be empty
}

// HasStop reports whether the position carries a protective stop.
func (p *Position) HasStop() bool { return p.StopLoss > 0 }

// HasTakeProfit reports whether a take-profit order is attached.
func (p *Position) HasTakeProfit() bool { return p.TakeProfit > 0 }

// PendingOrder is a not-yet-filled entry order.
type PendingOrder struct {
	Instrument string
	Direction  Direction
	Source     string // job that created it, e.g. "intraday", "swing", "scalp"
	CreatedAt  time.Time
}

// Age returns how long the order has been resting.
func (o *PendingOrder) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// Account is the normalized account summary from the gateway.
type Account struct {
	Balance       float64
	UnrealizedPnL float64
	Currency      string
}

// AccountSnapshot bundles everything one positions/status call returns.
type AccountSnapshot struct {
	Positions     []*Position
	PendingOrders []*PendingOrder
	Account       Account
	FetchedAt     time.Time
}

// FindPosition returns the open position for (instrument, direction), or nil.
func (s *AccountSnapshot) FindPosition(instrument string, direction Direction) *Position {
	for _, p := range s.Positions {
		if p.Instrument == instrument && p.Direction == direction {
			return p
		}
	}
	return nil
}

// HasExposure reports whether any open position or pending order exists on
// the instrument, regardless of direction.
func (s *AccountSnapshot) HasExposure(instrument string) bool {
	for _, p := range s.Positions {
		if p.Instrument == instrument {
			return true
		}
	}
	for _, o := range s.PendingOrders {
		if o.Instrument == instrument {
			return true
		}
	}
	return false
}
