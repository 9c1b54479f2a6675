package domain

import (
	"context"
	"time"
)

// MarketDataGateway exposes the read side of the external data service.
type MarketDataGateway interface {
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetTechnicals(ctx context.Context, instrument string, granularity Timeframe) (*Technicals, error)
	// PostJournal records an analysis entry. Fire-and-forget: failures are
	// swallowed by the implementation.
	PostJournal(ctx context.Context, entry map[string]any)
}

// ExecutionGateway exposes the mutating side of the external trade service.
type ExecutionGateway interface {
	SubmitTrade(ctx context.Context, payload *OrderPayload) (*ExecutionResult, error)
	CancelOrder(ctx context.Context, req *CancelRequest) (*ExecutionResult, error)
	ModifyPosition(ctx context.Context, req *ModifyRequest) (*ExecutionResult, error)
}

// Notifier delivers human-readable alerts. Delivery failures are non-fatal
// and must never abort a job.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// RunnerStateRepository persists trailing state for runner positions.
type RunnerStateRepository interface {
	SaveRunnerState(ctx context.Context, state *RunnerState) error
	GetRunnerState(ctx context.Context, instrument string, direction Direction) (*RunnerState, error)
	ListRunnerStates(ctx context.Context) ([]*RunnerState, error)
	DeleteRunnerState(ctx context.Context, instrument string, direction Direction) error
}

// DecisionRepository appends and reads the monitoring history.
type DecisionRepository interface {
	AppendDecision(ctx context.Context, d *Decision) error
	ListDecisions(ctx context.Context, limit int) ([]*Decision, error)
	ListDecisionsSince(ctx context.Context, since time.Time) ([]*Decision, error)
	LastDecisionID(ctx context.Context) (int64, error)
}

// WarningRepository deduplicates near-stop warnings across monitor runs.
type WarningRepository interface {
	MarkWarned(ctx context.Context, instrument string, direction Direction) error
	WasWarned(ctx context.Context, instrument string, direction Direction) (bool, error)
	ClearWarning(ctx context.Context, instrument string, direction Direction) error
}

// TradeRepository is the local trade journal backing risk accounting and
// close detection.
type TradeRepository interface {
	SaveTrade(ctx context.Context, t *TradeRecord) (int64, error)
	ListOpenTrades(ctx context.Context) ([]*TradeRecord, error)
	ListClosedTrades(ctx context.Context, limit int) ([]*TradeRecord, error)
	CloseTrade(ctx context.Context, id int64, pnl float64, closedAt time.Time) error
	CountTradesSince(ctx context.Context, since time.Time) (int, error)
	CountClosedSince(ctx context.Context, since time.Time) (int, error)
	SumPnLSince(ctx context.Context, since time.Time) (float64, error)
}
