package engine

import (
	"context"

	"btcdigital/internal/logger"
)

// Run is the engine's single decision loop. It is the only goroutine that
// ever mutates Engine state; every other goroutine communicates with it
// exclusively through the events channel. Run blocks until ctx is
// canceled, events is closed, or a ShutdownEvent arrives.
func (e *Engine) Run(ctx context.Context, events <-chan Event) {
	logger.Section("ENGINE")
	logger.Info("ENGINE", "decision loop started")

	for {
		select {
		case <-ctx.Done():
			e.Lifecycle = Halted
			e.publishSnapshot()
			logger.Warn("ENGINE", "shutting down")
			return

		case ev, ok := <-events:
			if !ok {
				e.Lifecycle = Halted
				e.publishSnapshot()
				return
			}
			stop := e.handle(ev)
			e.publishSnapshot()
			if stop {
				return
			}
		}
	}
}

// handle dispatches one event and reports whether the loop should stop.
func (e *Engine) handle(ev Event) (stop bool) {
	switch v := ev.(type) {
	case BtcPriceEvent:
		e.HandleBtcPrice(v.Price, v.TimestampMs)

	case MarketUpdateEvent:
		e.HandleMarketUpdate(v.Market)
		e.Perf.ScanRun()
		logger.Info("SCANNER", "tracking "+v.Market.Ticker)

	case MarketSettledEvent:
		e.HandleSettlement(v.Ticker, v.Result)
		logger.Info("SETTLEMENT", v.Ticker+" resolved "+v.Result)

	case TickEvent:
		e.HandleTick()

	case ShutdownEvent:
		e.Lifecycle = Halted
		e.emitWs(WsEngineState{State: "halted", Reason: "shutdown requested"})
		logger.Warn("ENGINE", "shutdown event received")
		return true
	}
	return false
}
