package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maksym/trade_sentinel/internal/domain"
)

// SQLiteStore is the single persisted store shared by the jobs: runner
// trailing state, monitoring decision history, near-stop warning markers and
// the local trade journal. SQLite's journaled writes give the atomic-replace
// semantics the concurrently starting jobs rely on.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runner_states (
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			trail_distance REAL NOT NULL,
			peak_price REAL NOT NULL,
			breakeven_set BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (instrument, direction)
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			action TEXT NOT NULL,
			old_stop REAL NOT NULL DEFAULT 0,
			new_stop REAL NOT NULL DEFAULT 0,
			detail TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);`,
		`CREATE TABLE IF NOT EXISTS warnings (
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			warned_at DATETIME NOT NULL,
			PRIMARY KEY (instrument, direction)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			size REAL NOT NULL DEFAULT 0,
			entry_price REAL NOT NULL DEFAULT 0,
			stop_distance REAL NOT NULL DEFAULT 0,
			limit_distance REAL NOT NULL DEFAULT 0,
			conviction TEXT,
			strategy TEXT,
			source TEXT,
			status TEXT NOT NULL,
			pnl REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			closed_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// --- RunnerStateRepository ---

func (s *SQLiteStore) SaveRunnerState(ctx context.Context, state *domain.RunnerState) error {
	query := `INSERT INTO runner_states (instrument, direction, entry_price, trail_distance, peak_price, breakeven_set, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(instrument, direction) DO UPDATE SET
				entry_price = excluded.entry_price,
				trail_distance = excluded.trail_distance,
				peak_price = excluded.peak_price,
				breakeven_set = excluded.breakeven_set,
				updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		state.Instrument, string(state.Direction), state.EntryPrice,
		state.TrailDistance, state.PeakPrice, state.BreakevenSet, state.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetRunnerState(ctx context.Context, instrument string, direction domain.Direction) (*domain.RunnerState, error) {
	query := `SELECT instrument, direction, entry_price, trail_distance, peak_price, breakeven_set, updated_at
			  FROM runner_states WHERE instrument = ? AND direction = ?`
	row := s.db.QueryRowContext(ctx, query, instrument, string(direction))

	state, err := scanRunnerState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return state, err
}

func (s *SQLiteStore) ListRunnerStates(ctx context.Context) ([]*domain.RunnerState, error) {
	query := `SELECT instrument, direction, entry_price, trail_distance, peak_price, breakeven_set, updated_at FROM runner_states`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.RunnerState
	for rows.Next() {
		state, err := scanRunnerState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func (s *SQLiteStore) DeleteRunnerState(ctx context.Context, instrument string, direction domain.Direction) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runner_states WHERE instrument = ? AND direction = ?`,
		instrument, string(direction))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunnerState(row rowScanner) (*domain.RunnerState, error) {
	var state domain.RunnerState
	var direction string
	err := row.Scan(&state.Instrument, &direction, &state.EntryPrice,
		&state.TrailDistance, &state.PeakPrice, &state.BreakevenSet, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	state.Direction = domain.Direction(direction)
	return &state, nil
}

// --- DecisionRepository ---

func (s *SQLiteStore) AppendDecision(ctx context.Context, d *domain.Decision) error {
	query := `INSERT INTO decisions (run_id, instrument, direction, action, old_stop, new_stop, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		d.RunID, d.Instrument, string(d.Direction), string(d.Action),
		d.OldStop, d.NewStop, d.Detail, d.CreatedAt)
	if err != nil {
		return err
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	query := `SELECT id, run_id, instrument, direction, action, old_stop, new_stop, detail, created_at
			  FROM decisions ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func (s *SQLiteStore) ListDecisionsSince(ctx context.Context, since time.Time) ([]*domain.Decision, error) {
	query := `SELECT id, run_id, instrument, direction, action, old_stop, new_stop, detail, created_at
			  FROM decisions WHERE created_at >= ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func (s *SQLiteStore) LastDecisionID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM decisions`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func scanDecisions(rows *sql.Rows) ([]*domain.Decision, error) {
	var decisions []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var direction, action string
		var detail sql.NullString
		if err := rows.Scan(&d.ID, &d.RunID, &d.Instrument, &direction, &action,
			&d.OldStop, &d.NewStop, &detail, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Direction = domain.Direction(direction)
		d.Action = domain.MonitorAction(action)
		d.Detail = detail.String
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// --- WarningRepository ---

func (s *SQLiteStore) MarkWarned(ctx context.Context, instrument string, direction domain.Direction) error {
	query := `INSERT INTO warnings (instrument, direction, warned_at) VALUES (?, ?, ?)
			  ON CONFLICT(instrument, direction) DO UPDATE SET warned_at = excluded.warned_at`
	_, err := s.db.ExecContext(ctx, query, instrument, string(direction), time.Now().UTC())
	return err
}

func (s *SQLiteStore) WasWarned(ctx context.Context, instrument string, direction domain.Direction) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM warnings WHERE instrument = ? AND direction = ?`,
		instrument, string(direction)).Scan(&count)
	return count > 0, err
}

func (s *SQLiteStore) ClearWarning(ctx context.Context, instrument string, direction domain.Direction) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM warnings WHERE instrument = ? AND direction = ?`,
		instrument, string(direction))
	return err
}

// --- TradeRepository ---

func (s *SQLiteStore) SaveTrade(ctx context.Context, t *domain.TradeRecord) (int64, error) {
	query := `INSERT INTO trades (instrument, direction, size, entry_price, stop_distance, limit_distance, conviction, strategy, source, status, pnl, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		t.Instrument, string(t.Direction), t.Size, t.EntryPrice,
		t.StopDistance, t.LimitDistance, string(t.Conviction),
		t.Strategy, t.Source, string(t.Status), t.PnL, t.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListOpenTrades(ctx context.Context) ([]*domain.TradeRecord, error) {
	return s.listTrades(ctx,
		`SELECT id, instrument, direction, size, entry_price, stop_distance, limit_distance, conviction, strategy, source, status, pnl, created_at, closed_at
		 FROM trades WHERE status IN (?, ?) ORDER BY id ASC`,
		string(domain.TradeSubmitted), string(domain.TradeExecuted))
}

func (s *SQLiteStore) ListClosedTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	return s.listTrades(ctx,
		`SELECT id, instrument, direction, size, entry_price, stop_distance, limit_distance, conviction, strategy, source, status, pnl, created_at, closed_at
		 FROM trades WHERE status = ? ORDER BY closed_at DESC LIMIT ?`,
		string(domain.TradeClosed), limit)
}

func (s *SQLiteStore) listTrades(ctx context.Context, query string, args ...any) ([]*domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var direction, conviction, status string
		var strategy, source sql.NullString
		var closedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Instrument, &direction, &t.Size, &t.EntryPrice,
			&t.StopDistance, &t.LimitDistance, &conviction, &strategy, &source,
			&status, &t.PnL, &t.CreatedAt, &closedAt); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		t.Conviction = domain.Conviction(conviction)
		t.Status = domain.TradeStatus(status)
		t.Strategy = strategy.String
		t.Source = source.String
		t.ClosedAt = closedAt.Time
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) CloseTrade(ctx context.Context, id int64, pnl float64, closedAt time.Time) error {
	// Both not-yet-closed statuses are closable, matching ListOpenTrades.
	_, err := s.db.ExecContext(ctx,
		`UPDATE trades SET status = ?, pnl = ?, closed_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(domain.TradeClosed), pnl, closedAt, id,
		string(domain.TradeSubmitted), string(domain.TradeExecuted))
	return err
}

func (s *SQLiteStore) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE status IN (?, ?) AND created_at >= ?`,
		string(domain.TradeExecuted), string(domain.TradeClosed), since).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CountClosedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = ? AND closed_at >= ?`,
		string(domain.TradeClosed), since).Scan(&count)
	return count, err
}

func (s *SQLiteStore) SumPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var pnl sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(pnl) FROM trades WHERE status = ? AND closed_at >= ?`,
		string(domain.TradeClosed), since).Scan(&pnl)
	return pnl.Float64, err
}
