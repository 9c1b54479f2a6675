package usecase_test

import (
	"context"
	"errors"
	"time"

	"github.com/maksym/trade_sentinel/internal/domain"
)

// In-memory store implementing every repository the monitor and scanner
// need, mirroring the sqlite store's semantics.
type memStore struct {
	runners   map[string]*domain.RunnerState
	decisions []*domain.Decision
	warned    map[string]bool
	trades    []*domain.TradeRecord
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		runners: make(map[string]*domain.RunnerState),
		warned:  make(map[string]bool),
	}
}

func key(instrument string, direction domain.Direction) string {
	return instrument + ":" + string(direction)
}

func (s *memStore) SaveRunnerState(ctx context.Context, state *domain.RunnerState) error {
	copied := *state
	s.runners[key(state.Instrument, state.Direction)] = &copied
	return nil
}

func (s *memStore) GetRunnerState(ctx context.Context, instrument string, direction domain.Direction) (*domain.RunnerState, error) {
	state, ok := s.runners[key(instrument, direction)]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *memStore) ListRunnerStates(ctx context.Context) ([]*domain.RunnerState, error) {
	var states []*domain.RunnerState
	for _, state := range s.runners {
		copied := *state
		states = append(states, &copied)
	}
	return states, nil
}

func (s *memStore) DeleteRunnerState(ctx context.Context, instrument string, direction domain.Direction) error {
	delete(s.runners, key(instrument, direction))
	return nil
}

func (s *memStore) AppendDecision(ctx context.Context, d *domain.Decision) error {
	s.nextID++
	d.ID = s.nextID
	copied := *d
	s.decisions = append(s.decisions, &copied)
	return nil
}

func (s *memStore) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	var out []*domain.Decision
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.decisions[i])
	}
	return out, nil
}

func (s *memStore) ListDecisionsSince(ctx context.Context, since time.Time) ([]*domain.Decision, error) {
	var out []*domain.Decision
	for _, d := range s.decisions {
		if !d.CreatedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) LastDecisionID(ctx context.Context) (int64, error) {
	return s.nextID, nil
}

func (s *memStore) MarkWarned(ctx context.Context, instrument string, direction domain.Direction) error {
	s.warned[key(instrument, direction)] = true
	return nil
}

func (s *memStore) WasWarned(ctx context.Context, instrument string, direction domain.Direction) (bool, error) {
	return s.warned[key(instrument, direction)], nil
}

func (s *memStore) ClearWarning(ctx context.Context, instrument string, direction domain.Direction) error {
	delete(s.warned, key(instrument, direction))
	return nil
}

func (s *memStore) SaveTrade(ctx context.Context, t *domain.TradeRecord) (int64, error) {
	s.nextID++
	t.ID = s.nextID
	copied := *t
	s.trades = append(s.trades, &copied)
	return t.ID, nil
}

func (s *memStore) ListOpenTrades(ctx context.Context) ([]*domain.TradeRecord, error) {
	var out []*domain.TradeRecord
	for _, t := range s.trades {
		if t.Status == domain.TradeSubmitted || t.Status == domain.TradeExecuted {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) ListClosedTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	// Newest-closed first, like the sqlite store.
	var out []*domain.TradeRecord
	for i := len(s.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if s.trades[i].Status == domain.TradeClosed {
			out = append(out, s.trades[i])
		}
	}
	return out, nil
}

func (s *memStore) CloseTrade(ctx context.Context, id int64, pnl float64, closedAt time.Time) error {
	for _, t := range s.trades {
		if t.ID == id && (t.Status == domain.TradeSubmitted || t.Status == domain.TradeExecuted) {
			t.Status = domain.TradeClosed
			t.PnL = pnl
			t.ClosedAt = closedAt
		}
	}
	return nil
}

func (s *memStore) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	count := 0
	for _, t := range s.trades {
		if (t.Status == domain.TradeExecuted || t.Status == domain.TradeClosed) && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountClosedSince(ctx context.Context, since time.Time) (int, error) {
	count := 0
	for _, t := range s.trades {
		if t.Status == domain.TradeClosed && !t.ClosedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) SumPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	for _, t := range s.trades {
		if t.Status == domain.TradeClosed && !t.ClosedAt.Before(since) {
			sum += t.PnL
		}
	}
	return sum, nil
}

// mockMarket serves canned snapshots and technicals.
type mockMarket struct {
	snapshot    *domain.AccountSnapshot
	snapshotErr error
	technicals  map[string]*domain.Technicals // keyed instrument or instrument/timeframe
	journal     []map[string]any
}

func (m *mockMarket) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	if m.snapshot == nil {
		return &domain.AccountSnapshot{}, nil
	}
	return m.snapshot, nil
}

func (m *mockMarket) GetTechnicals(ctx context.Context, instrument string, granularity domain.Timeframe) (*domain.Technicals, error) {
	if t, ok := m.technicals[instrument+"/"+string(granularity)]; ok {
		return t, nil
	}
	if t, ok := m.technicals[instrument]; ok {
		return t, nil
	}
	return nil, errors.New("no technicals available")
}

func (m *mockMarket) PostJournal(ctx context.Context, entry map[string]any) {
	m.journal = append(m.journal, entry)
}

// mockExec records every mutation request and confirms with a fixed status.
type mockExec struct {
	status   string // defaults to "ok"
	submits  []*domain.OrderPayload
	cancels  []*domain.CancelRequest
	modifies []*domain.ModifyRequest
}

func (e *mockExec) result() *domain.ExecutionResult {
	status := e.status
	if status == "" {
		status = "ok"
	}
	return &domain.ExecutionResult{Status: status}
}

func (e *mockExec) SubmitTrade(ctx context.Context, payload *domain.OrderPayload) (*domain.ExecutionResult, error) {
	e.submits = append(e.submits, payload)
	return e.result(), nil
}

func (e *mockExec) CancelOrder(ctx context.Context, req *domain.CancelRequest) (*domain.ExecutionResult, error) {
	e.cancels = append(e.cancels, req)
	return e.result(), nil
}

func (e *mockExec) ModifyPosition(ctx context.Context, req *domain.ModifyRequest) (*domain.ExecutionResult, error) {
	e.modifies = append(e.modifies, req)
	return e.result(), nil
}

type mockNotifier struct {
	messages []string
}

func (n *mockNotifier) Notify(ctx context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}
