// Package storage persists trade, market, and model history to SQLite. It
// is driven entirely by engine.DbCommand values arriving on a channel; the
// engine never waits on a write except for the single settlement
// round-trip (GetPendingTradesCmd), so a slow or failing disk degrades
// history fidelity, not trading decisions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"btcdigital/internal/engine"
	"btcdigital/internal/logger"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func dbPath() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "btcdigital.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "btcdigital.db")
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open() (*DB, error) {
	path := dbPath()
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("opened %s", path))
	return d, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS trades (
				trade_id          TEXT PRIMARY KEY,
				model_name        TEXT NOT NULL,
				market_ticker     TEXT NOT NULL,
				side              TEXT NOT NULL,
				action            TEXT NOT NULL,
				entry_price       REAL NOT NULL,
				contracts         REAL NOT NULL,
				model_probability REAL NOT NULL,
				ev                REAL,
				kelly_fraction    REAL,
				fees_estimate     REAL,
				entry_time        TEXT NOT NULL,
				exit_price        REAL,
				exit_reason       TEXT,
				exit_time         TEXT,
				outcome           TEXT,
				pnl               REAL,
				settle_time       TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_trades_model ON trades(model_name);
			CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_ticker);
			CREATE INDEX IF NOT EXISTS idx_trades_pending ON trades(market_ticker, exit_price, outcome);

			CREATE TABLE IF NOT EXISTS fills (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				trade_id   TEXT NOT NULL,
				kind       TEXT NOT NULL,
				price      REAL NOT NULL,
				contracts  REAL NOT NULL,
				pnl        REAL NOT NULL,
				reason     TEXT,
				at         TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_fills_trade ON fills(trade_id);

			CREATE TABLE IF NOT EXISTS markets (
				ticker           TEXT PRIMARY KEY,
				event_ticker     TEXT,
				series_ticker    TEXT,
				strike_price     REAL,
				open_time        TEXT,
				close_time       TEXT,
				expiration_time  TEXT,
				result           TEXT,
				settlement_value REAL
			);

			CREATE TABLE IF NOT EXISTS model_snapshots (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				model_name     TEXT NOT NULL,
				timestamp      TEXT NOT NULL,
				btc_price      REAL NOT NULL,
				market_ticker  TEXT,
				probability    REAL,
				ev             REAL,
				kelly_size     REAL,
				cumulative_pnl REAL NOT NULL,
				volatility     REAL,
				regime         TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_snapshots_model_time ON model_snapshots(model_name, timestamp);

			CREATE TABLE IF NOT EXISTS risk_state (
				model_name     TEXT PRIMARY KEY,
				exposure       REAL NOT NULL,
				daily_pnl      REAL NOT NULL,
				max_drawdown   REAL NOT NULL,
				peak_equity    REAL NOT NULL,
				total_trades   INTEGER NOT NULL,
				winning_trades INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS price_ticks (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				price     REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_ticks_time ON price_ticks(timestamp);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "applied migration v1")
	}

	return nil
}

// Run drains cmds until ctx is canceled or the channel is closed, writing
// each command in its own statement. Failed writes are logged, never
// retried: the engine's own in-memory state remains the source of truth.
// GetPendingTradesCmd is handled inline rather than through apply since it
// produces a reply instead of a write outcome.
func (d *DB) Run(ctx context.Context, cmds <-chan engine.DbCommand, perf *engine.PerfCounters) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			if query, ok := cmd.(engine.GetPendingTradesCmd); ok {
				d.handlePendingTrades(query, perf)
				continue
			}
			if err := d.apply(cmd); err != nil {
				logger.Warn("DB", err.Error())
				if perf != nil {
					perf.DbWriteFailed()
				}
				continue
			}
			if perf != nil {
				perf.DbWriteOK()
			}
		}
	}
}

func (d *DB) handlePendingTrades(q engine.GetPendingTradesCmd, perf *engine.PerfCounters) {
	rows, err := d.queryPendingTrades(q.MarketTicker)
	if err != nil {
		logger.Warn("DB", err.Error())
		if perf != nil {
			perf.DbWriteFailed()
		}
		rows = nil
	}
	select {
	case q.Reply <- rows:
	default:
	}
}

func (d *DB) queryPendingTrades(ticker string) ([]engine.TradeRow, error) {
	rows, err := d.sql.Query(
		`SELECT trade_id, model_name, market_ticker, side, action, entry_price, contracts,
		        model_probability, ev, kelly_fraction, outcome, pnl, fees_estimate, entry_time, settle_time
		 FROM trades
		 WHERE market_ticker = ? AND exit_price IS NULL AND outcome IS NULL`,
		ticker,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending trades: %w", err)
	}
	defer rows.Close()

	var out []engine.TradeRow
	for rows.Next() {
		var r engine.TradeRow
		if err := rows.Scan(
			&r.ID, &r.ModelName, &r.MarketTicker, &r.Side, &r.Action, &r.EntryPrice, &r.Contracts,
			&r.ModelProbability, &r.EV, &r.KellyFraction, &r.Outcome, &r.PnL, &r.FeesEstimate, &r.EntryTime, &r.SettleTime,
		); err != nil {
			return nil, fmt.Errorf("scan pending trade: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) apply(cmd engine.DbCommand) error {
	switch c := cmd.(type) {
	case engine.InsertBtcPriceCmd:
		_, err := d.sql.Exec(
			`INSERT INTO price_ticks (timestamp, price) VALUES (?, ?)`,
			c.Timestamp, c.Price,
		)
		return err

	case engine.InsertMarketCmd:
		_, err := d.sql.Exec(
			`INSERT OR REPLACE INTO markets (ticker, event_ticker, series_ticker, strike_price, open_time, close_time, expiration_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Ticker, c.EventTicker, c.SeriesTicker, c.StrikePrice, c.OpenTime, c.CloseTime, c.ExpirationTime,
		)
		return err

	case engine.InsertTradeCmd:
		if c.Action == "sell" {
			return d.applyPartialExit(c)
		}
		_, err := d.sql.Exec(
			`INSERT OR REPLACE INTO trades
			 (trade_id, model_name, market_ticker, side, action, entry_price, contracts, model_probability, ev, kelly_fraction, fees_estimate, entry_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ModelName, c.MarketTicker, c.Side, c.Action, c.EntryPrice, c.Contracts, c.ModelProbability, c.EV, c.KellyFraction, c.FeesEstimate, c.EntryTime,
		)
		return err

	case engine.ExitTradeCmd:
		_, err := d.sql.Exec(
			`INSERT INTO fills (trade_id, kind, price, contracts, pnl, reason, at) VALUES (?, 'full_exit', ?, (SELECT contracts FROM trades WHERE trade_id = ?), ?, ?, ?)`,
			c.TradeID, c.ExitPrice, c.TradeID, c.PnL, c.Reason, c.ExitTime,
		)
		if err != nil {
			return err
		}
		_, err = d.sql.Exec(
			`UPDATE trades SET exit_price = ?, exit_reason = ?, exit_time = ?, pnl = ?, contracts = 0 WHERE trade_id = ?`,
			c.ExitPrice, c.Reason, c.ExitTime, c.PnL, c.TradeID,
		)
		return err

	case engine.SettleTradeCmd:
		_, err := d.sql.Exec(
			`UPDATE trades SET outcome = ?, pnl = ?, settle_time = ? WHERE trade_id = ?`,
			c.Outcome, c.PnL, c.SettleTime, c.TradeID,
		)
		return err

	case engine.InsertSnapshotCmd:
		_, err := d.sql.Exec(
			`INSERT INTO model_snapshots (model_name, timestamp, btc_price, market_ticker, probability, ev, kelly_size, cumulative_pnl, volatility, regime)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ModelName, c.Timestamp, c.BTCPrice, c.MarketTicker, c.Probability, c.EV, c.KellySize, c.CumulativePnL, c.Volatility, c.Regime,
		)
		return err

	case engine.UpdateRiskStateCmd:
		_, err := d.sql.Exec(
			`INSERT OR REPLACE INTO risk_state (model_name, exposure, daily_pnl, max_drawdown, peak_equity, total_trades, winning_trades)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ModelName, c.Exposure, c.DailyPnL, c.MaxDrawdown, c.PeakEquity, c.TotalTrades, c.WinningTrades,
		)
		return err

	case engine.UpdateMarketResultCmd:
		_, err := d.sql.Exec(
			`UPDATE markets SET result = ?, settlement_value = ? WHERE ticker = ?`,
			c.Result, c.SettlementValue, c.Ticker,
		)
		return err

	default:
		return fmt.Errorf("storage: unknown db command %T", cmd)
	}
}

// applyPartialExit handles a partial take-profit fill, which apply
// recognizes by its "sell" action. The "-partial" suffix the position
// manager appends to the originating trade's ID is trimmed to find that
// trade. It decrements the open trade's remaining contracts rather
// than inserting a second pending row, so a later GetPendingTradesCmd
// settlement query sees only what is still actually open.
func (d *DB) applyPartialExit(c engine.InsertTradeCmd) error {
	originalID := strings.TrimSuffix(c.ID, "-partial")

	_, err := d.sql.Exec(
		`UPDATE trades SET contracts = MAX(contracts - ?, 0) WHERE trade_id = ?`,
		c.Contracts, originalID,
	)
	if err != nil {
		return err
	}

	_, err = d.sql.Exec(
		`INSERT INTO fills (trade_id, kind, price, contracts, pnl, reason, at) VALUES (?, 'partial_exit', ?, ?, ?, 'partial_take_profit', ?)`,
		originalID, c.EntryPrice, c.Contracts, c.EV, c.EntryTime,
	)
	return err
}
