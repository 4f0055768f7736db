package storage

import (
	"database/sql"
	"testing"

	"btcdigital/internal/engine"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestInsertAndExitTrade(t *testing.T) {
	d := openMemory(t)
	defer d.Close()

	trade := engine.InsertTradeCmd{
		ID: "t1", ModelName: "black_scholes", MarketTicker: "KXBTCD-X", Side: "yes", Action: "buy",
		EntryPrice: 0.4, Contracts: 10, ModelProbability: 0.6, EV: 0.08, KellyFraction: 0.02, FeesEstimate: 0.08, EntryTime: "2026-07-31T12:00:00Z",
	}
	if err := d.apply(trade); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := d.apply(engine.ExitTradeCmd{TradeID: "t1", ExitPrice: 0.8, PnL: 4.0, Reason: "take_profit", ExitTime: "2026-07-31T12:05:00Z"}); err != nil {
		t.Fatalf("exit: %v", err)
	}

	var pnl float64
	var reason string
	var contracts float64
	err := d.sql.QueryRow("SELECT pnl, exit_reason, contracts FROM trades WHERE trade_id = ?", "t1").Scan(&pnl, &reason, &contracts)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if pnl != 4.0 || reason != "take_profit" {
		t.Fatalf("unexpected row: pnl=%v reason=%v", pnl, reason)
	}
	if contracts != 0 {
		t.Fatalf("expected contracts zeroed on full exit, got %v", contracts)
	}
}

func TestPartialExitDecrementsContracts(t *testing.T) {
	d := openMemory(t)
	defer d.Close()

	entry := engine.InsertTradeCmd{
		ID: "t2", ModelName: "jump_diffusion", MarketTicker: "KXBTCD-X", Side: "yes", Action: "buy",
		EntryPrice: 0.4, Contracts: 10, ModelProbability: 0.6, EntryTime: "2026-07-31T12:00:00Z",
	}
	if err := d.apply(entry); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	partial := engine.InsertTradeCmd{
		ID: "t2-partial", ModelName: "jump_diffusion", MarketTicker: "KXBTCD-X", Side: "yes", Action: "sell",
		EntryPrice: 0.6, Contracts: 5, EV: 0.9, EntryTime: "2026-07-31T12:03:00Z",
	}
	if err := d.apply(partial); err != nil {
		t.Fatalf("insert partial: %v", err)
	}

	var contracts float64
	if err := d.sql.QueryRow("SELECT contracts FROM trades WHERE trade_id = ?", "t2").Scan(&contracts); err != nil {
		t.Fatalf("query: %v", err)
	}
	if contracts != 5 {
		t.Fatalf("expected 5 remaining contracts after partial exit, got %v", contracts)
	}

	var fillCount int
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM fills WHERE trade_id = ?", "t2").Scan(&fillCount); err != nil {
		t.Fatalf("count fills: %v", err)
	}
	if fillCount != 1 {
		t.Fatalf("expected 1 fill row, got %d", fillCount)
	}
}

func TestQueryPendingTradesExcludesSettledAndExited(t *testing.T) {
	d := openMemory(t)
	defer d.Close()

	open := engine.InsertTradeCmd{ID: "p1", ModelName: "student_t", MarketTicker: "KXBTCD-Y", Side: "no", Action: "buy", EntryPrice: 0.3, Contracts: 4, EntryTime: "2026-07-31T12:00:00Z"}
	closed := engine.InsertTradeCmd{ID: "p2", ModelName: "student_t", MarketTicker: "KXBTCD-Y", Side: "yes", Action: "buy", EntryPrice: 0.5, Contracts: 2, EntryTime: "2026-07-31T12:00:00Z"}
	if err := d.apply(open); err != nil {
		t.Fatalf("insert open: %v", err)
	}
	if err := d.apply(closed); err != nil {
		t.Fatalf("insert closed: %v", err)
	}
	if err := d.apply(engine.ExitTradeCmd{TradeID: "p2", ExitPrice: 0.9, PnL: 0.8, Reason: "take_profit", ExitTime: "2026-07-31T12:10:00Z"}); err != nil {
		t.Fatalf("exit p2: %v", err)
	}

	rows, err := d.queryPendingTrades("KXBTCD-Y")
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "p1" {
		t.Fatalf("expected only p1 pending, got %+v", rows)
	}
}

func TestInsertBtcPrice(t *testing.T) {
	d := openMemory(t)
	defer d.Close()

	if err := d.apply(engine.InsertBtcPriceCmd{Timestamp: "2026-07-31T12:00:00Z", Price: 50123.45}); err != nil {
		t.Fatalf("insert price: %v", err)
	}
	var count int
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM price_ticks").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 price row, got %d", count)
	}
}

func TestUpdateRiskState(t *testing.T) {
	d := openMemory(t)
	defer d.Close()

	cmd := engine.UpdateRiskStateCmd{ModelName: "black_scholes", Exposure: 12.5, DailyPnL: -3.2, MaxDrawdown: 5.0, PeakEquity: 20.0, TotalTrades: 9, WinningTrades: 5}
	if err := d.apply(cmd); err != nil {
		t.Fatalf("update risk state: %v", err)
	}
	var exposure float64
	if err := d.sql.QueryRow("SELECT exposure FROM risk_state WHERE model_name = ?", "black_scholes").Scan(&exposure); err != nil {
		t.Fatalf("query: %v", err)
	}
	if exposure != 12.5 {
		t.Fatalf("expected exposure 12.5, got %v", exposure)
	}
}
