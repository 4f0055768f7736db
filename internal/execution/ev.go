// Package execution computes the execution-adjusted expected value of
// buying the YES or NO side of a digital option, net of fees and slippage.
package execution

// Params are the inputs to an EV computation. All stack values, no
// allocation.
type Params struct {
	Probability     float64 // calibrated model probability P(S_T >= K)
	ContractPrice   float64 // cost of the YES contract, e.g. 0.55
	FeeRate         float64 // fee as a fraction of payout
	Slippage        float64 // estimated slippage in dollars
	FillProbability float64 // probability of getting filled
}

// Result is the winning side's EV plus enough context to compare against
// the opposite side.
type Result struct {
	EV             float64
	IsSignal       bool
	BuyYes         bool
	EffectiveProb  float64
	EVOpposite     float64
}

// Compute returns the execution-adjusted EV for both YES and NO sides and
// selects whichever clears threshold, if either does.
func Compute(p Params, threshold float64) Result {
	prob := p.Probability
	c := p.ContractPrice
	f := p.FeeRate
	s := p.Slippage
	q := p.FillProbability

	evYes := q * (prob*(1-c)*(1-f) - (1-prob)*c - s)

	noPrice := 1 - c
	evNo := q * ((1-prob)*(1-noPrice)*(1-f) - prob*noPrice - s)

	switch {
	case evYes >= evNo && evYes > threshold:
		return Result{EV: evYes, IsSignal: true, BuyYes: true, EffectiveProb: prob, EVOpposite: evNo}
	case evNo > evYes && evNo > threshold:
		return Result{EV: evNo, IsSignal: true, BuyYes: false, EffectiveProb: 1 - prob, EVOpposite: evYes}
	default:
		best := evYes
		worst := evNo
		if evNo > best {
			best = evNo
		}
		if evYes < worst {
			worst = evYes
		}
		return Result{EV: best, IsSignal: false, BuyYes: evYes >= evNo, EffectiveProb: prob, EVOpposite: worst}
	}
}
