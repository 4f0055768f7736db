// Package models implements the three digital-option pricing models: the
// Black-Scholes, Merton jump-diffusion, and Student-t probability of the
// underlying finishing above the strike at expiry.
package models

import "math"

// Params are precomputed once per tick and shared by every pricing model so
// the hot path never repeats a log or sqrt.
type Params struct {
	Spot, Strike float64
	TTLYears     float64
	Sigma        float64

	LnSK        float64
	SqrtT       float64
	SigmaSqrtT  float64
	HalfSigmaSq float64
}

// NewParams derives Params from raw spot/strike/time/annualized-vol inputs.
func NewParams(spot, strike, ttlSeconds, sigma float64) Params {
	ttlYears := ttlSeconds / (365.25 * 24 * 3600)
	lnSK := math.Log(spot / strike)
	sqrtT := math.Sqrt(ttlYears)
	return Params{
		Spot:        spot,
		Strike:      strike,
		TTLYears:    ttlYears,
		Sigma:       sigma,
		LnSK:        lnSK,
		SqrtT:       sqrtT,
		SigmaSqrtT:  sigma * sqrtT,
		HalfSigmaSq: 0.5 * sigma * sigma,
	}
}

// VolContext carries the volatility estimator's jump and fat-tail context
// into models that need more than just sigma.
type VolContext struct {
	JumpIntensity float64
	JumpMean      float64
	JumpVar       float64
	StudentTNu    float64
}

// PricingModel is the one polymorphic seam in the engine: a pure function
// from (Params, VolContext) to a clamped terminal-above-strike probability.
type PricingModel interface {
	Name() string
	Probability(p Params, ctx VolContext) float64
}

func degenerateProbability(p Params) float64 {
	if p.Spot >= p.Strike {
		return 1.0
	}
	return 0.0
}

func isDegenerate(p Params) bool {
	return p.SigmaSqrtT < 1e-12 || p.TTLYears <= 0
}

const (
	probFloor = 0.001
	probCeil  = 0.999
)
