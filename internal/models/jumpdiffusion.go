package models

import (
	"math"

	"btcdigital/internal/mathx"

	"gonum.org/v1/gonum/stat/distuv"
)

// kMax is the truncation point of the Merton jump-diffusion Poisson sum.
const kMax = 10

// JumpDiffusion prices the digital option under a Merton jump-diffusion
// process: a truncated Poisson mixture of Black-Scholes terms, one per
// possible jump count up to kMax.
type JumpDiffusion struct {
	normal distuv.Normal
}

func NewJumpDiffusion() *JumpDiffusion {
	return &JumpDiffusion{normal: distuv.Normal{Mu: 0, Sigma: 1}}
}

func (m *JumpDiffusion) Name() string { return "Jump-Diffusion" }

func (m *JumpDiffusion) Probability(p Params, ctx VolContext) float64 {
	if isDegenerate(p) {
		return degenerateProbability(p)
	}

	lambda := ctx.JumpIntensity
	deltaSq := ctx.JumpVar
	t := p.TTLYears
	sigmaSq := p.Sigma * p.Sigma
	lnSK := p.LnSK

	if lambda < 1e-6 {
		d2 := (lnSK - p.HalfSigmaSq*t) / p.SigmaSqrtT
		return mathx.Clamp(m.normal.CDF(d2), probFloor, probCeil)
	}

	lambdaT := lambda * t
	negLambdaT := math.Exp(-lambdaT)

	var prob float64
	poissonTerm := negLambdaT

	for k := 0; k <= kMax; k++ {
		if k > 0 {
			poissonTerm *= lambdaT / float64(k)
		}

		sigmaKSq := sigmaSq + float64(k)*deltaSq/t
		sigmaK := math.Sqrt(sigmaKSq)
		sigmaKSqrtT := sigmaK * p.SqrtT

		if sigmaKSqrtT < 1e-12 {
			if p.Spot >= p.Strike {
				prob += poissonTerm
			}
			continue
		}

		halfSigmaKSq := 0.5 * sigmaKSq
		d2k := (lnSK - halfSigmaKSq*t) / sigmaKSqrtT
		prob += poissonTerm * m.normal.CDF(d2k)
	}

	return mathx.Clamp(prob, probFloor, probCeil)
}
