package metrics

import (
	"testing"

	"btcdigital/internal/engine"
)

func TestObserveDoesNotPanicOnEmptySnapshot(t *testing.T) {
	Observe(engine.EngineSnapshot{})
}

func TestObserveMonotonicAdvance(t *testing.T) {
	Observe(engine.EngineSnapshot{Perf: engine.PerfSnapshot{TicksProcessed: 5}})
	Observe(engine.EngineSnapshot{Perf: engine.PerfSnapshot{TicksProcessed: 10}})
	if lastTotals.ticks != 10 {
		t.Fatalf("expected monotonic total of 10, got %d", lastTotals.ticks)
	}
}
