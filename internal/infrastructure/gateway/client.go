package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the external market-data/execution service. Raw responses
// are loosely typed with inconsistent field names between endpoints, so every
// document is normalized into the domain model right here and never
// re-interpreted downstream.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// --- MarketDataGateway ---

func (c *Client) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	var raw struct {
		Positions     []map[string]any `json:"positions"`
		PendingOrders []map[string]any `json:"pending_orders"`
		Account       map[string]any   `json:"account"`
	}
	if err := c.getJSON(ctx, "/positions/status", &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch account snapshot: %w", err)
	}

	snap := &domain.AccountSnapshot{FetchedAt: time.Now().UTC()}
	for _, doc := range raw.Positions {
		p := normalizePosition(doc)
		if p.Instrument == "" {
			c.logger.Warn("Skipping position without instrument", zap.Any("doc", doc))
			continue
		}
		snap.Positions = append(snap.Positions, p)
	}
	for _, doc := range raw.PendingOrders {
		o := normalizePendingOrder(doc)
		if o.Instrument == "" {
			continue
		}
		snap.PendingOrders = append(snap.PendingOrders, o)
	}
	snap.Account = domain.Account{
		Balance:       pickFloat(raw.Account, "balance", "net_liquidation", "equity"),
		UnrealizedPnL: pickFloat(raw.Account, "unrealized_pnl", "pnl"),
		Currency:      pickString(raw.Account, "currency"),
	}
	return snap, nil
}

func (c *Client) GetTechnicals(ctx context.Context, instrument string, granularity domain.Timeframe) (*domain.Technicals, error) {
	path := "/technicals/" + instrument
	if granularity != "" {
		path += "/" + string(granularity)
	}

	var raw struct {
		Price      map[string]any            `json:"price"`
		Technicals map[string]map[string]any `json:"technicals"`
		Levels     struct {
			Support    []float64 `json:"support"`
			Resistance []float64 `json:"resistance"`
		} `json:"levels"`
		Scoring map[string]any `json:"scoring"`
	}
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch technicals for %s: %w", instrument, err)
	}

	tech := &domain.Technicals{
		Instrument: instrument,
		Price:      pickFloat(raw.Price, "mid", "last", "close"),
		ATR:        make(map[domain.Timeframe]float64),
		Levels: domain.Levels{
			Support:    raw.Levels.Support,
			Resistance: raw.Levels.Resistance,
		},
	}
	for tf, fields := range raw.Technicals {
		if atr := pickFloat(fields, "atr", "atr_14"); atr > 0 {
			tech.ATR[domain.Timeframe(tf)] = atr
		}
	}
	tech.Signal = normalizeSignal(raw.Scoring, instrument, tech.Price, granularity)
	return tech, nil
}

// PostJournal records an analysis entry. Failures are swallowed: the journal
// is an audit convenience and never blocks a scan.
func (c *Client) PostJournal(ctx context.Context, entry map[string]any) {
	if err := c.postJSON(ctx, "/journal", entry, nil); err != nil {
		c.logger.Debug("Journal post failed", zap.Error(err))
	}
}

// --- ExecutionGateway ---

func (c *Client) SubmitTrade(ctx context.Context, payload *domain.OrderPayload) (*domain.ExecutionResult, error) {
	var result domain.ExecutionResult
	if err := c.postJSON(ctx, "/trades/submit", payload, &result); err != nil {
		return nil, fmt.Errorf("failed to submit trade for %s: %w", payload.Instrument, err)
	}
	return &result, nil
}

func (c *Client) CancelOrder(ctx context.Context, req *domain.CancelRequest) (*domain.ExecutionResult, error) {
	var result domain.ExecutionResult
	if err := c.postJSON(ctx, "/orders/cancel", req, &result); err != nil {
		return nil, fmt.Errorf("failed to cancel order for %s: %w", req.Instrument, err)
	}
	return &result, nil
}

func (c *Client) ModifyPosition(ctx context.Context, req *domain.ModifyRequest) (*domain.ExecutionResult, error) {
	var result domain.ExecutionResult
	if err := c.postJSON(ctx, "/positions/modify", req, &result); err != nil {
		return nil, fmt.Errorf("failed to modify position for %s: %w", req.Instrument, err)
	}
	return &result, nil
}

// --- HTTP plumbing ---

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
