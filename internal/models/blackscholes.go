package models

import (
	"btcdigital/internal/mathx"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholes prices the digital option under a Black-Scholes assumption
// with risk-free rate r = 0 (negligible over a 15-minute horizon).
//
//	d2 = (ln(S/K) - 0.5*sigma^2*T) / (sigma*sqrt(T));  P = Phi(d2)
type BlackScholes struct {
	normal distuv.Normal
}

// NewBlackScholes returns a ready-to-use model reusing a single standard
// normal distribution across calls.
func NewBlackScholes() *BlackScholes {
	return &BlackScholes{normal: distuv.Normal{Mu: 0, Sigma: 1}}
}

func (m *BlackScholes) Name() string { return "Black-Scholes" }

func (m *BlackScholes) Probability(p Params, _ VolContext) float64 {
	if isDegenerate(p) {
		return degenerateProbability(p)
	}
	d2 := (p.LnSK - p.HalfSigmaSq*p.TTLYears) / p.SigmaSqrtT
	return mathx.Clamp(m.normal.CDF(d2), probFloor, probCeil)
}
