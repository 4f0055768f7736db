package execution

import "testing"

func TestFairPriceZeroEV(t *testing.T) {
	p := Params{Probability: 0.5, ContractPrice: 0.5, FeeRate: 0, Slippage: 0, FillProbability: 1}
	r := Compute(p, 0.01)
	if r.IsSignal {
		t.Fatalf("fair price should not signal")
	}
	if r.EV > 0.01 || r.EV < -0.01 {
		t.Fatalf("fair price EV should be ~0: %v", r.EV)
	}
}

func TestEdgeSignals(t *testing.T) {
	p := Params{Probability: 0.7, ContractPrice: 0.5, FeeRate: 0.01, Slippage: 0.005, FillProbability: 0.95}
	r := Compute(p, 0.02)
	if !r.IsSignal {
		t.Fatalf("should signal when model has edge")
	}
	if !r.BuyYes {
		t.Fatalf("should buy YES when prob > price")
	}
	if r.EV <= 0 {
		t.Fatalf("EV should be positive, got %v", r.EV)
	}
}

func TestNoSideEdge(t *testing.T) {
	p := Params{Probability: 0.3, ContractPrice: 0.5, FeeRate: 0.01, Slippage: 0.005, FillProbability: 0.95}
	r := Compute(p, 0.02)
	if r.IsSignal && r.BuyYes {
		t.Fatalf("should buy NO when prob < price")
	}
}
