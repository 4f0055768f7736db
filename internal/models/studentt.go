package models

import (
	"btcdigital/internal/mathx"

	"gonum.org/v1/gonum/stat/distuv"
)

// StudentT prices the digital option with returns modeled as
// R ~ t_nu(0, sigma^2), capturing fatter tails than Gaussian for
// short BTC horizons.
//
//	P(S_T >= K) = 1 - F_t(ln(K/S) / (sigma*sqrt(T)), nu)
type StudentT struct{}

func NewStudentT() *StudentT { return &StudentT{} }

func (m *StudentT) Name() string { return "Student-t" }

func (m *StudentT) Probability(p Params, ctx VolContext) float64 {
	if isDegenerate(p) {
		return degenerateProbability(p)
	}

	nu := mathx.Clamp(ctx.StudentTNu, 2.1, 30.0)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}

	// ln(K/S) = -ln(S/K) = -LnSK
	z := -p.LnSK / p.SigmaSqrtT
	prob := 1.0 - dist.CDF(z)

	return mathx.Clamp(prob, probFloor, probCeil)
}
