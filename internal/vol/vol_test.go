package vol

import "testing"

func TestUpdateIgnoresNonPositivePrice(t *testing.T) {
	e := NewEstimator()
	e.Update(100)
	e.Update(-5)
	e.Update(0)
	if e.State.SampleCount != 0 {
		t.Fatalf("non-positive prices should not count as samples, got %d", e.State.SampleCount)
	}
}

func TestNotReadyBeforeMinSamples(t *testing.T) {
	e := NewEstimator()
	price := 100000.0
	for i := 0; i < 10; i++ {
		price *= 1.001
		e.Update(price)
	}
	if e.IsReady() {
		t.Fatalf("should not be ready with only 10 samples")
	}
}

func TestReadyAfterMinSamples(t *testing.T) {
	e := NewEstimator()
	price := 100000.0
	for i := 0; i < 25; i++ {
		price *= 1.0005
		e.Update(price)
	}
	if !e.IsReady() {
		t.Fatalf("should be ready after 25 samples")
	}
	if e.State.EWMAVol < 1e-8 || e.State.EWMAVol > 1.0 {
		t.Fatalf("ewma vol out of clamp range: %v", e.State.EWMAVol)
	}
}

func TestHighRegimeOnVolSpike(t *testing.T) {
	e := NewEstimator()
	price := 100000.0
	for i := 0; i < 320; i++ {
		price *= 1.0001
		e.Update(price)
	}
	// Inject a burst of much larger moves to push short-window variance up.
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
		e.Update(price)
	}
	if e.State.Regime != High {
		t.Fatalf("expected high regime after volatility burst, got %v", e.State.Regime)
	}
}
