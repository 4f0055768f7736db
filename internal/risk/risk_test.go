package risk

import "testing"

func TestKellyNoEdgeNoBet(t *testing.T) {
	p := KellyParams{ModelProbability: 0.5, Alpha: 50, Beta: 50, ContractPrice: 0.5, FractionalGamma: 0.2, Lambda: 1.0, MaxPosition: 50}
	r := ComputeKelly(p)
	if r.Contracts >= 1.0 {
		t.Fatalf("no edge should produce ~0 contracts: %v", r.Contracts)
	}
}

func TestKellyStrongEdgeBets(t *testing.T) {
	p := KellyParams{ModelProbability: 0.8, Alpha: 80, Beta: 20, ContractPrice: 0.5, FractionalGamma: 0.2, Lambda: 1.0, MaxPosition: 50}
	r := ComputeKelly(p)
	if r.Contracts <= 0 {
		t.Fatalf("strong edge should bet, got %v contracts", r.Contracts)
	}
	if r.Contracts > 50 {
		t.Fatalf("should not exceed max")
	}
	if r.RobustFraction >= r.RawFraction {
		t.Fatalf("fractional should be less than full")
	}
}

func TestKellyCapRespected(t *testing.T) {
	p := KellyParams{ModelProbability: 0.999, Alpha: 999, Beta: 1, ContractPrice: 0.1, FractionalGamma: 0.5, Lambda: 0, MaxPosition: 10}
	r := ComputeKelly(p)
	if r.Contracts > 10 {
		t.Fatalf("cap must be respected: %v", r.Contracts)
	}
}

func TestKellyModelProbWithNoHistory(t *testing.T) {
	p := KellyParams{ModelProbability: 0.6, Alpha: 1, Beta: 1, ContractPrice: 0.3, FractionalGamma: 0.2, Lambda: 1.0, MaxPosition: 50}
	r := ComputeKelly(p)
	if r.Contracts <= 0 {
		t.Fatalf("model edge with no history should bet, got %v contracts", r.Contracts)
	}
}

func TestLimitsNormalConditionsAllowed(t *testing.T) {
	in := LimitsInput{ProposedContracts: 10, ProposedPrice: 0.5, MaxDailyDrawdown: 100, MaxPosition: 50}
	if !CheckLimits(in).Allowed() {
		t.Fatalf("expected allowed under normal conditions")
	}
}

func TestLimitsDrawdownBlocks(t *testing.T) {
	in := LimitsInput{DailyPnL: -150, ProposedContracts: 10, ProposedPrice: 0.5, MaxDailyDrawdown: 100, MaxPosition: 50}
	if CheckLimits(in).Allowed() {
		t.Fatalf("expected blocked on drawdown breach")
	}
}

func TestLimitsHighVolWithElevatedDrawdownBlocks(t *testing.T) {
	in := LimitsInput{
		MaxDrawdown: 60, HighVolRegime: true,
		ProposedContracts: 10, ProposedPrice: 0.5, MaxDailyDrawdown: 100, MaxPosition: 50,
	}
	if CheckLimits(in).Allowed() {
		t.Fatalf("expected blocked on vol spike + elevated drawdown")
	}
}
