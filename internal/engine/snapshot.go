package engine

import (
	"sync/atomic"

	"btcdigital/internal/vol"
)

// PerfCounters are lock-free running counters for the dashboard and logs.
// Every field is accessed only through its Add/Load methods so the struct
// is safe to share across the engine loop and the storage writer without
// a mutex.
type PerfCounters struct {
	ticksProcessed  atomic.Uint64
	tradesOpened    atomic.Uint64
	tradesClosed    atomic.Uint64
	scansRun        atomic.Uint64
	wsMessagesSent  atomic.Uint64
	dbWritesOK      atomic.Uint64
	dbWritesFailed  atomic.Uint64
	apiErrors       atomic.Uint64
	pricesReceived  atomic.Uint64
}

func (p *PerfCounters) TickProcessed()   { p.ticksProcessed.Add(1) }
func (p *PerfCounters) TradeOpened()     { p.tradesOpened.Add(1) }
func (p *PerfCounters) TradeClosed()     { p.tradesClosed.Add(1) }
func (p *PerfCounters) ScanRun()         { p.scansRun.Add(1) }
func (p *PerfCounters) WsMessageSent()   { p.wsMessagesSent.Add(1) }
func (p *PerfCounters) DbWriteOK()       { p.dbWritesOK.Add(1) }
func (p *PerfCounters) DbWriteFailed()   { p.dbWritesFailed.Add(1) }
func (p *PerfCounters) APIError()        { p.apiErrors.Add(1) }
func (p *PerfCounters) PriceReceived()   { p.pricesReceived.Add(1) }

// Snapshot is a point-in-time, allocation-free read of all counters.
type PerfSnapshot struct {
	TicksProcessed uint64
	TradesOpened   uint64
	TradesClosed   uint64
	ScansRun       uint64
	WsMessagesSent uint64
	DbWritesOK     uint64
	DbWritesFailed uint64
	APIErrors      uint64
	PricesReceived uint64
}

func (p *PerfCounters) Snapshot() PerfSnapshot {
	return PerfSnapshot{
		TicksProcessed: p.ticksProcessed.Load(),
		TradesOpened:   p.tradesOpened.Load(),
		TradesClosed:   p.tradesClosed.Load(),
		ScansRun:       p.scansRun.Load(),
		WsMessagesSent: p.wsMessagesSent.Load(),
		DbWritesOK:     p.dbWritesOK.Load(),
		DbWritesFailed: p.dbWritesFailed.Load(),
		APIErrors:      p.apiErrors.Load(),
		PricesReceived: p.pricesReceived.Load(),
	}
}

// EngineSnapshot is the full read-only view served by the status endpoint
// and read by the metrics loop. The engine goroutine is the only
// writer: it builds one of these after every handled event and publishes
// it into Engine's atomic.Pointer[EngineSnapshot] slot. Every other
// goroutine reads it via Engine.Snapshot(), never by touching the engine's
// live fields directly.
type EngineSnapshot struct {
	Lifecycle    Lifecycle
	BTCPrice     float64
	ActiveMarket *ActiveMarket
	Volatility   vol.State
	Models       []ModelState
	Perf         PerfSnapshot
	TickCount    uint64
}
