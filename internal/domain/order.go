package domain

import "time"

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// OrderPayload is the concrete order request handed to the execution gateway.
//
// Invariant: StopDistance and LimitDistance are either both set (> 0, with
// LimitDistance >= StopDistance) or both zero. Zero means the gateway applies
// its own default sizing.
type OrderPayload struct {
	Instrument    string     `json:"instrument"`
	Direction     Direction  `json:"direction"`
	OrderType     OrderType  `json:"order_type"`
	EntryPrice    float64    `json:"entry_price,omitempty"` // unset for MARKET
	StopDistance  float64    `json:"stop_distance,omitempty"`
	LimitDistance float64    `json:"limit_distance,omitempty"`
	Conviction    Conviction `json:"conviction"`
	Source        string     `json:"source"`
	Reasoning     string     `json:"reasoning,omitempty"`
	ClientOrderID string     `json:"client_order_id,omitempty"`
}

// HasExplicitSizing reports whether the payload carries its own stop/limit
// distances instead of deferring to the gateway defaults.
func (p *OrderPayload) HasExplicitSizing() bool {
	return p.StopDistance > 0 && p.LimitDistance > 0
}

// ModifyRequest asks the gateway to adjust a position's protective orders.
type ModifyRequest struct {
	Instrument     string    `json:"instrument"`
	Direction      Direction `json:"direction"`
	NewStopLoss    float64   `json:"new_stop_loss,omitempty"`
	NewTakeProfit  float64   `json:"new_take_profit,omitempty"`
	ResizeStopFull bool      `json:"resize_stop_full,omitempty"` // cover full remaining size
	Reasoning      string    `json:"reasoning"`
}

// CancelRequest asks the gateway to cancel a pending entry order.
type CancelRequest struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Reasoning  string    `json:"reasoning"`
}

// ExecutionResult is the gateway's confirmation for any mutating call.
type ExecutionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the gateway confirmed the mutation. Anything other than
// an explicit success status counts as a rejection.
func (r *ExecutionResult) OK() bool {
	return r != nil && (r.Status == "ok" || r.Status == "success" || r.Status == "filled")
}

// TradeStatus tracks locally journaled trades.
type TradeStatus string

const (
	TradeSubmitted TradeStatus = "SUBMITTED"
	TradeExecuted  TradeStatus = "EXECUTED"
	TradeRejected  TradeStatus = "REJECTED"
	TradeClosed    TradeStatus = "CLOSED"
)

// TradeRecord is the local journal entry for a submitted trade. The broker
// owns the position; this record only supports risk accounting and the
// close-detection pass.
type TradeRecord struct {
	ID            int64
	Instrument    string
	Direction     Direction
	Size          float64
	EntryPrice    float64
	StopDistance  float64
	LimitDistance float64
	Conviction    Conviction
	Strategy      string
	Source        string
	Status        TradeStatus
	PnL           float64
	CreatedAt     time.Time
	ClosedAt      time.Time
}
