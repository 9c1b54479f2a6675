package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

type stubStore struct {
	mu         sync.Mutex
	runners    []*domain.RunnerState
	decisions  []*domain.Decision
	trades     []*domain.TradeRecord
	listErr    error
	lastCalled int
}

func (s *stubStore) SaveRunnerState(ctx context.Context, state *domain.RunnerState) error { return nil }
func (s *stubStore) GetRunnerState(ctx context.Context, instrument string, direction domain.Direction) (*domain.RunnerState, error) {
	return nil, nil
}
func (s *stubStore) ListRunnerStates(ctx context.Context) ([]*domain.RunnerState, error) {
	return s.runners, s.listErr
}
func (s *stubStore) DeleteRunnerState(ctx context.Context, instrument string, direction domain.Direction) error {
	return nil
}

func (s *stubStore) AppendDecision(ctx context.Context, d *domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = int64(len(s.decisions) + 1)
	s.decisions = append(s.decisions, d)
	return nil
}
func (s *stubStore) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCalled = limit
	var out []*domain.Decision
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.decisions[i])
	}
	return out, s.listErr
}
func (s *stubStore) ListDecisionsSince(ctx context.Context, since time.Time) ([]*domain.Decision, error) {
	return s.decisions, nil
}
func (s *stubStore) LastDecisionID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.decisions)), nil
}

func (s *stubStore) SaveTrade(ctx context.Context, t *domain.TradeRecord) (int64, error) {
	return 0, nil
}
func (s *stubStore) ListOpenTrades(ctx context.Context) ([]*domain.TradeRecord, error) {
	return nil, nil
}
func (s *stubStore) ListClosedTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	return s.trades, s.listErr
}
func (s *stubStore) CloseTrade(ctx context.Context, id int64, pnl float64, closedAt time.Time) error {
	return nil
}
func (s *stubStore) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}
func (s *stubStore) CountClosedSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}
func (s *stubStore) SumPnLSince(ctx context.Context, since time.Time) (float64, error) {
	return 0, nil
}

type stubMarket struct {
	snapshot *domain.AccountSnapshot
	err      error
}

func (m *stubMarket) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	return m.snapshot, m.err
}
func (m *stubMarket) GetTechnicals(ctx context.Context, instrument string, granularity domain.Timeframe) (*domain.Technicals, error) {
	return nil, errors.New("not served by the dashboard")
}
func (m *stubMarket) PostJournal(ctx context.Context, entry map[string]any) {}

func newTestServer(market *stubMarket, store *stubStore) *Server {
	return NewServer(0, market, store, store, store, zap.NewNop())
}

func TestHandleStatus(t *testing.T) {
	market := &stubMarket{snapshot: &domain.AccountSnapshot{
		Positions: []*domain.Position{{Instrument: "MES", Direction: domain.DirectionBuy}},
		Account:   domain.Account{Balance: 10000, Currency: "USD"},
	}}
	srv := newTestServer(market, &stubStore{})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := body["positions"]; !ok {
		t.Errorf("body = %v", body)
	}
}

func TestHandleStatusGatewayDown(t *testing.T) {
	srv := newTestServer(&stubMarket{err: errors.New("connection refused")}, &stubStore{})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleDecisionsLimit(t *testing.T) {
	store := &stubStore{}
	for i := 0; i < 5; i++ {
		_ = store.AppendDecision(context.Background(), &domain.Decision{
			Instrument: "MES", Action: domain.ActionHold, CreatedAt: time.Now(),
		})
	}
	srv := newTestServer(&stubMarket{}, store)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastCalled != 2 {
		t.Errorf("limit passed = %d, want 2", store.lastCalled)
	}

	// Out-of-range limits fall back to the default.
	srv.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/decisions?limit=5000", nil))
	if store.lastCalled != 100 {
		t.Errorf("limit passed = %d, want default 100", store.lastCalled)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	store := &stubStore{runners: []*domain.RunnerState{{Instrument: "MES", Direction: domain.DirectionBuy}}}
	srv := newTestServer(&stubMarket{}, store)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "trade_sentinel_runner_states 1") {
		t.Errorf("metrics missing runner gauge:\n%s", body)
	}
	if !strings.Contains(body, "trade_sentinel_decisions_total") {
		t.Errorf("metrics missing decisions gauge:\n%s", body)
	}
}

func TestDecisionHubStreamsNewRows(t *testing.T) {
	store := &stubStore{}
	hub := NewDecisionHub(store, zap.NewNop())
	hub.poll = 20 * time.Millisecond

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	// Appended after startup: must be streamed.
	_ = store.AppendDecision(context.Background(), &domain.Decision{
		Instrument: "MES",
		Direction:  domain.DirectionBuy,
		Action:     domain.ActionBreakeven,
		CreatedAt:  time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Decision
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Instrument != "MES" || got.Action != domain.ActionBreakeven {
		t.Errorf("streamed decision = %+v", got)
	}
}
