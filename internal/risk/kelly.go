// Package risk implements position sizing (robust Bayesian Kelly) and the
// pre-trade admission gate.
package risk

import (
	"math"

	"btcdigital/internal/mathx"
)

// KellyParams are the inputs to a single Kelly sizing computation.
type KellyParams struct {
	ModelProbability float64 // win probability from the pricing model
	Alpha            float64 // Beta posterior alpha (wins + prior)
	Beta             float64 // Beta posterior beta (losses + prior)
	ContractPrice    float64
	FractionalGamma  float64 // fractional Kelly multiplier, e.g. [0.1, 0.3]
	Lambda           float64 // conservative shrinkage factor
	MaxPosition      float64
}

// KellyResult is the sizing decision plus the intermediate posterior
// statistics, useful for logging and tests.
type KellyResult struct {
	RawFraction    float64
	RobustFraction float64
	Contracts      float64
	PEff           float64
	PMean          float64
	PStd           float64
}

// ComputeKelly derives a position size from the model probability shrunk by
// Bayesian uncertainty in the trade-history posterior, then scaled by a
// fractional multiplier and capped at MaxPosition. Pure function.
func ComputeKelly(p KellyParams) KellyResult {
	alpha := mathx.Max(p.Alpha, 0.5)
	beta := mathx.Max(p.Beta, 0.5)
	c := mathx.Clamp(p.ContractPrice, 0.01, 0.99)
	modelP := mathx.Clamp(p.ModelProbability, 0.01, 0.99)

	abSum := alpha + beta
	pMean := alpha / abSum
	pVar := (alpha * beta) / (abSum * abSum * (abSum + 1))
	pStd := math.Sqrt(pVar)

	pEff := mathx.Clamp(modelP-p.Lambda*pStd, 0.01, 0.99)

	b := (1 - c) / c
	rawFraction := (b*pEff - (1 - pEff)) / b

	if rawFraction <= 0 {
		return KellyResult{RawFraction: rawFraction, PEff: pEff, PMean: pMean, PStd: pStd}
	}

	robustFraction := rawFraction * p.FractionalGamma
	contracts := mathx.Clamp(robustFraction*p.MaxPosition, 0, p.MaxPosition)

	return KellyResult{
		RawFraction:    rawFraction,
		RobustFraction: robustFraction,
		Contracts:      contracts,
		PEff:           pEff,
		PMean:          pMean,
		PStd:           pStd,
	}
}
