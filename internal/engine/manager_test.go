package engine

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		FractionalKelly:  0.2,
		MaxPositionSize:  50,
		EVThreshold:      0.02,
		MaxDailyDrawdown: 100,
	}
}

func activeMarket(strike float64, closeIn time.Duration) *ActiveMarket {
	ask := "0.50"
	bid := "0.49"
	return &ActiveMarket{
		Ticker:    "KXBTCD-TEST",
		Strike:    &strike,
		YesAsk:    &ask,
		YesBid:    &bid,
		NoAsk:     &ask,
		NoBid:     &bid,
		CloseTime: time.Now().Add(closeIn).Format(time.RFC3339),
	}
}

// warmUpVol feeds the volatility estimator enough samples to become ready
// and puts the engine into the Trading lifecycle, bypassing the real
// BtcPrice/MarketUpdate event plumbing for unit-test purposes.
func warmUpVol(e *Engine, base float64) {
	price := base
	for i := 0; i < 40; i++ {
		price += 1.0
		e.HandleBtcPrice(price, time.Now().UnixMilli())
	}
	e.Lifecycle = Trading
}

// drainDb empties the engine's DbOut channel in the background so emitDb
// never blocks during a test; it is not meant to assert on DB content.
func drainDb(e *Engine) (stop func()) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-e.DbOut:
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func drainWs(e *Engine) (stop func()) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-e.WsOut:
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func TestNoActiveMarketSkipsEntryLogic(t *testing.T) {
	e := New(testConfig())
	defer drainWs(e)()
	defer drainDb(e)()

	e.Lifecycle = Trading
	e.BTCPrice = 50000
	e.HandleTick()

	if e.TickCount != 1 {
		t.Fatalf("expected tick counted even with no market")
	}
	for _, st := range e.modelStates {
		if len(st.OpenPositions) != 0 {
			t.Fatalf("should not open positions with no active market")
		}
	}
}

func TestMaxLegsCapEnforced(t *testing.T) {
	e := New(testConfig())
	defer drainWs(e)()
	defer drainDb(e)()

	e.ActiveMarket = activeMarket(50000, 10*time.Minute)
	warmUpVol(e, 49000)

	for i := 0; i < 50; i++ {
		e.BTCPrice += 100
		e.HandleTick()
	}
	for _, st := range e.modelStates {
		if len(st.OpenPositions) > MaxLegs {
			t.Fatalf("model %s exceeded MaxLegs: %d", st.Name, len(st.OpenPositions))
		}
	}
}

// replyPendingTrades answers the single GetPendingTradesCmd emitted by
// HandleSettlement with one TradeRow per supplied open position, mirroring
// what the storage writer would return for still-open (unexited,
// unsettled) trades against that market. Commands queued before it (such
// as the price inserts from warmUpVol) are discarded.
func replyPendingTrades(e *Engine, ticker string, rows []TradeRow) {
	for next := range e.DbOut {
		cmd, ok := next.(GetPendingTradesCmd)
		if !ok {
			continue
		}
		if cmd.MarketTicker != ticker {
			panic("unexpected market ticker in GetPendingTradesCmd")
		}
		cmd.Reply <- rows
		return
	}
}

func TestSettlementClearsMarketAndPositions(t *testing.T) {
	e := New(testConfig())
	defer drainWs(e)()

	e.ActiveMarket = activeMarket(50000, 10*time.Minute)
	warmUpVol(e, 49000)

	var rows []TradeRow
	for i, st := range e.modelStates {
		pos := OpenPosition{
			TradeID: "t" + e.modelNames[i], MarketTicker: e.ActiveMarket.Ticker, Side: "yes",
			EntryPrice: 0.4, Contracts: 10, ModelProbability: 0.6, EntryTick: e.TickCount,
		}
		st.OpenPositions = append(st.OpenPositions, pos)
		rows = append(rows, TradeRow{
			ID: pos.TradeID, ModelName: st.Name, MarketTicker: pos.MarketTicker, Side: pos.Side, Action: "buy",
			EntryPrice: pos.EntryPrice, Contracts: pos.Contracts, ModelProbability: pos.ModelProbability,
		})
	}

	ticker := e.ActiveMarket.Ticker
	go replyPendingTrades(e, ticker, rows)
	e.HandleSettlement(ticker, "yes")

	if e.ActiveMarket != nil {
		t.Fatalf("expected active market cleared after settlement")
	}
	for _, st := range e.modelStates {
		if len(st.OpenPositions) != 0 {
			t.Fatalf("expected positions cleared after settlement")
		}
		if st.CumulativePnL <= 0 {
			t.Fatalf("winning yes position should produce positive pnl, got %v", st.CumulativePnL)
		}
	}
}

func TestStrikeCrossClosesNoPositionNearExpiry(t *testing.T) {
	e := New(testConfig())
	defer drainWs(e)()
	defer drainDb(e)()

	e.ActiveMarket = activeMarket(50000, 60*time.Second)
	warmUpVol(e, 49000)
	e.BTCPrice = 50500

	pos := OpenPosition{
		TradeID: "t1", MarketTicker: e.ActiveMarket.Ticker, Side: "no",
		EntryPrice: 0.4, Contracts: 10, ModelProbability: 0.6, EntryTick: 0,
	}
	for _, st := range e.modelStates {
		st.OpenPositions = append(st.OpenPositions, pos)
	}
	e.TickCount = MinHoldTicks + 1
	e.HandleTick()

	for _, st := range e.modelStates {
		if len(st.OpenPositions) != 0 {
			t.Fatalf("expected strike crossover to close a no position with BTC above strike+buffer near expiry")
		}
	}
}

func TestHardStopLossClosesPosition(t *testing.T) {
	e := New(testConfig())
	defer drainWs(e)()
	defer drainDb(e)()

	e.ActiveMarket = activeMarket(50000, 10*time.Minute)
	ask := "0.05"
	bid := "0.05"
	e.ActiveMarket.YesBid = &bid
	e.ActiveMarket.YesAsk = &ask
	warmUpVol(e, 49000)
	// At the strike, so the yes position is not strike-crossed and the
	// stop-loss rule is the one that fires.
	e.BTCPrice = 50000

	pos := OpenPosition{
		TradeID: "t1", MarketTicker: e.ActiveMarket.Ticker, Side: "yes",
		EntryPrice: 0.5, Contracts: 10, ModelProbability: 0.6, EntryTick: 0,
	}
	for _, st := range e.modelStates {
		st.OpenPositions = append(st.OpenPositions, pos)
	}
	e.TickCount = MinHoldTicks + 1
	e.HandleTick()

	// The same tick may open a fresh entry once the model is flat, so
	// check that the underwater position itself is gone.
	for _, st := range e.modelStates {
		for _, p := range st.OpenPositions {
			if p.TradeID == "t1" {
				t.Fatalf("expected hard stop loss to close deeply underwater position")
			}
		}
	}
}
