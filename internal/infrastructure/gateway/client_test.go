package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second, zap.NewNop()), srv
}

func TestGetAccountSnapshotNormalizesFieldVariants(t *testing.T) {
	// The upstream mixes naming conventions between endpoints; every variant
	// must land in the same typed fields.
	body := `{
		"positions": [
			{"instrument": "XAUUSD", "direction": "BUY", "size": 1.5, "entry_price": 2400,
			 "current_price": 2410, "unrealized_pnl": 15, "stop_loss": 2390, "take_profit": 2430},
			{"epic": "MES", "side": "short", "quantity": 2, "avg_price": 5000,
			 "market_price": 4990, "upl": 20, "stop_level": 5010, "strategy_tag": "m5_scalp"},
			{"side": "BUY", "size": 1}
		],
		"pending_orders": [
			{"symbol": "EURUSD", "side": "LONG", "origin": "swing", "timestamp": 1748850000}
		],
		"account": {"net_liquidation": 25000.5, "pnl": 35, "currency": "USD"}
	}`
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, body)
	}))
	defer srv.Close()

	snap, err := client.GetAccountSnapshot(context.Background())
	if err != nil {
		t.Fatalf("GetAccountSnapshot() error = %v", err)
	}

	// The instrument-less document is dropped.
	if len(snap.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(snap.Positions))
	}
	gold := snap.Positions[0]
	if gold.Instrument != "XAUUSD" || gold.Direction != domain.DirectionBuy ||
		gold.EntryPrice != 2400 || gold.StopLoss != 2390 || gold.TakeProfit != 2430 {
		t.Errorf("canonical position = %+v", gold)
	}
	mes := snap.Positions[1]
	if mes.Instrument != "MES" || mes.Direction != domain.DirectionSell ||
		mes.Size != 2 || mes.EntryPrice != 5000 || mes.CurrentPrice != 4990 ||
		mes.UnrealizedPnL != 20 || mes.StopLoss != 5010 || mes.Strategy != "m5_scalp" {
		t.Errorf("variant position = %+v", mes)
	}
	if mes.HasTakeProfit() {
		t.Error("absent take-profit must read as unset")
	}

	if len(snap.PendingOrders) != 1 {
		t.Fatalf("pending orders = %d, want 1", len(snap.PendingOrders))
	}
	ord := snap.PendingOrders[0]
	if ord.Instrument != "EURUSD" || ord.Direction != domain.DirectionBuy || ord.Source != "swing" {
		t.Errorf("pending order = %+v", ord)
	}
	if ord.CreatedAt.Unix() != 1748850000 {
		t.Errorf("CreatedAt = %v, want unix 1748850000", ord.CreatedAt)
	}

	if snap.Account.Balance != 25000.5 || snap.Account.UnrealizedPnL != 35 || snap.Account.Currency != "USD" {
		t.Errorf("account = %+v", snap.Account)
	}
}

func TestGetTechnicals(t *testing.T) {
	body := `{
		"price": {"mid": 2405.5},
		"technicals": {
			"m5": {"atr_14": 3.2},
			"h1": {"atr": 12.5},
			"h4": {"rsi": 55}
		},
		"levels": {"support": [2390, 2375], "resistance": [2420, 2450]},
		"scoring": {"direction": "long", "conviction": "HIGH", "type": "breakout", "strategy": "momentum"}
	}`
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/technicals/XAUUSD/h1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, body)
	}))
	defer srv.Close()

	tech, err := client.GetTechnicals(context.Background(), "XAUUSD", domain.TimeframeH1)
	if err != nil {
		t.Fatalf("GetTechnicals() error = %v", err)
	}
	if tech.Price != 2405.5 {
		t.Errorf("Price = %v", tech.Price)
	}
	if tech.ATRFor(domain.TimeframeM5) != 3.2 || tech.ATRFor(domain.TimeframeH1) != 12.5 {
		t.Errorf("ATR = %+v", tech.ATR)
	}
	if tech.ATRFor(domain.TimeframeH4) != 0 {
		t.Errorf("h4 block without atr must read as 0, got %v", tech.ATRFor(domain.TimeframeH4))
	}
	if len(tech.Levels.Support) != 2 || len(tech.Levels.Resistance) != 2 {
		t.Errorf("Levels = %+v", tech.Levels)
	}

	sig := tech.Signal
	if sig == nil {
		t.Fatal("Signal = nil, want normalized scoring")
	}
	if sig.Direction != domain.DirectionBuy || sig.Conviction != domain.ConvictionHigh ||
		sig.SignalType != domain.SignalTrend || sig.Timeframe != domain.TimeframeH1 ||
		sig.ReferencePrice != 2405.5 || sig.Strategy != "momentum" {
		t.Errorf("Signal = %+v", sig)
	}
}

func TestGetTechnicalsNoActionableScoring(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"price": {"mid": 1.1}, "scoring": {"direction": "none"}}`)
	}))
	defer srv.Close()

	tech, err := client.GetTechnicals(context.Background(), "EURUSD", domain.TimeframeH4)
	if err != nil {
		t.Fatalf("GetTechnicals() error = %v", err)
	}
	if tech.Signal != nil {
		t.Errorf("Signal = %+v, want nil for unactionable scoring", tech.Signal)
	}
}

func TestSubmitTrade(t *testing.T) {
	var received map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades/submit" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &received)
		io.WriteString(w, `{"status": "ok", "message": "order accepted"}`)
	}))
	defer srv.Close()

	result, err := client.SubmitTrade(context.Background(), &domain.OrderPayload{
		Instrument:    "MES",
		Direction:     domain.DirectionBuy,
		OrderType:     domain.OrderMarket,
		StopDistance:  10,
		LimitDistance: 20,
		Conviction:    domain.ConvictionHigh,
		Source:        "intraday",
	})
	if err != nil {
		t.Fatalf("SubmitTrade() error = %v", err)
	}
	if !result.OK() {
		t.Errorf("result = %+v, want OK", result)
	}
	if received["instrument"] != "MES" || received["stop_distance"] != 10.0 {
		t.Errorf("submitted body = %+v", received)
	}
	if _, present := received["entry_price"]; present {
		t.Error("market order must omit entry_price")
	}
}

func TestExecutionRejectionSurfaces(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "rejected", "message": "margin"}`)
	}))
	defer srv.Close()

	result, err := client.ModifyPosition(context.Background(), &domain.ModifyRequest{
		Instrument: "MES", Direction: domain.DirectionBuy, NewStopLoss: 5000,
	})
	if err != nil {
		t.Fatalf("ModifyPosition() error = %v", err)
	}
	if result.OK() {
		t.Error("rejection must not read as confirmed")
	}
	if result.Message != "margin" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := client.GetAccountSnapshot(context.Background()); err == nil {
		t.Fatal("GetAccountSnapshot() expected error on 502")
	}
	if _, err := client.CancelOrder(context.Background(), &domain.CancelRequest{Instrument: "MES"}); err == nil {
		t.Fatal("CancelOrder() expected error on 502")
	}
}
