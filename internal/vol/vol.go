// Package vol maintains a rolling estimate of short-horizon BTC volatility:
// an EWMA of squared log returns, jump statistics, a regime classification,
// and a Student-t degrees-of-freedom estimate by method of moments.
package vol

import (
	"math"

	"btcdigital/internal/mathx"
)

const (
	ewmaLambda       = 0.94
	jumpThreshold    = 3.0
	jumpWindow       = 300
	shortVolWindow   = 30
	longVolWindow    = 300
	regimeThreshold  = 1.5
	minSamples       = 20
	samplePeriodSecs = 2.0
)

// Regime classifies the short-vs-long window volatility ratio.
type Regime int

const (
	Low Regime = iota
	High
)

func (r Regime) String() string {
	if r == High {
		return "high"
	}
	return "low"
}

// State is the stack-sized snapshot of the estimator's output, safe to copy
// and pass to pricing models or broadcast to subscribers.
type State struct {
	EWMAVol      float64
	JumpIntensity float64
	JumpMean     float64
	JumpVar      float64
	StudentTNu   float64
	Regime       Regime
	SampleCount  uint64
}

// DefaultState returns the engine's bootstrap volatility state, used before
// any price observations have arrived.
func DefaultState() State {
	return State{
		EWMAVol:       0.01,
		JumpIntensity: 0.5,
		JumpMean:      0,
		JumpVar:       0.0001,
		StudentTNu:    5.0,
		Regime:        Low,
		SampleCount:   0,
	}
}

// Estimator holds the ring buffers behind State. It is owned exclusively by
// the engine loop; no synchronization is needed.
type Estimator struct {
	returns    []float64
	jumpBuffer []float64
	prevPrice  float64
	State      State
}

// NewEstimator returns a ready-to-use Estimator seeded with DefaultState.
func NewEstimator() *Estimator {
	return &Estimator{
		returns:    make([]float64, 0, longVolWindow+10),
		jumpBuffer: make([]float64, 0, jumpWindow+10),
		State:      DefaultState(),
	}
}

// Update processes one BTC price observation, updating State in place.
// Non-finite or non-positive prices are silently dropped.
func (e *Estimator) Update(price float64) {
	if price <= 0 || !isFiniteNum(price) {
		return
	}
	if e.prevPrice <= 0 {
		e.prevPrice = price
		return
	}

	logReturn := math.Log(price / e.prevPrice)
	e.prevPrice = price
	if !isFiniteNum(logReturn) {
		return
	}

	if len(e.returns) >= longVolWindow {
		e.returns = e.returns[1:]
	}
	e.returns = append(e.returns, logReturn)

	if len(e.jumpBuffer) >= jumpWindow {
		e.jumpBuffer = e.jumpBuffer[1:]
	}
	e.jumpBuffer = append(e.jumpBuffer, logReturn)

	e.State.SampleCount++

	rSq := logReturn * logReturn
	v := ewmaLambda*e.State.EWMAVol*e.State.EWMAVol + (1-ewmaLambda)*rSq
	e.State.EWMAVol = mathx.Clamp(math.Sqrt(v), 1e-8, 1.0)

	if e.State.SampleCount < minSamples {
		return
	}

	e.updateJumpStats()
	e.updateRegime()
	e.updateStudentTNu()
}

func (e *Estimator) updateJumpStats() {
	sigma := e.State.EWMAVol
	threshold := jumpThreshold * sigma

	var jumpCount int
	var jumpSum, jumpSqSum float64
	for _, r := range e.jumpBuffer {
		if math.Abs(r) > threshold {
			jumpCount++
			jumpSum += r
			jumpSqSum += r * r
		}
	}

	n := float64(len(e.jumpBuffer))
	if n > 0 {
		obsPerYear := 365.25 * 24 * 3600 / samplePeriodSecs
		e.State.JumpIntensity = (float64(jumpCount) / n) * obsPerYear
	}

	if jumpCount > 0 {
		jc := float64(jumpCount)
		e.State.JumpMean = jumpSum / jc
		if jumpCount > 1 {
			e.State.JumpVar = (jumpSqSum / jc) - (e.State.JumpMean * e.State.JumpMean)
		} else {
			e.State.JumpVar = sigma * sigma
		}
		e.State.JumpVar = mathx.Max(e.State.JumpVar, 1e-12)
	}
}

func (e *Estimator) updateRegime() {
	if len(e.returns) < longVolWindow {
		return
	}
	shortVar := varianceOfLast(e.returns, shortVolWindow)
	longVar := varianceOfLast(e.returns, longVolWindow)
	if longVar > 1e-16 {
		ratio := shortVar / longVar
		if ratio > regimeThreshold {
			e.State.Regime = High
		} else {
			e.State.Regime = Low
		}
	}
}

func (e *Estimator) updateStudentTNu() {
	if len(e.returns) < 30 {
		return
	}
	n := float64(len(e.returns))
	var sum float64
	for _, r := range e.returns {
		sum += r
	}
	mean := sum / n

	var m2, m4 float64
	for _, r := range e.returns {
		d := r - mean
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n

	if m2 > 1e-16 {
		kurtosis := m4 / (m2 * m2)
		excess := kurtosis - 3.0
		if excess > 0.1 {
			nu := 4.0 + 6.0/excess
			e.State.StudentTNu = mathx.Clamp(nu, 2.5, 30.0)
		} else {
			e.State.StudentTNu = 30.0
		}
	}
}

// AnnualizedVol scales the per-observation EWMA volatility to annual terms,
// assuming one observation roughly every samplePeriodSecs seconds.
func (e *Estimator) AnnualizedVol() float64 {
	obsPerYear := 365.25 * 24 * 3600 / samplePeriodSecs
	return e.State.EWMAVol * math.Sqrt(obsPerYear)
}

func isFiniteNum(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsReady reports whether enough samples have accumulated for the estimates
// to be considered reliable.
func (e *Estimator) IsReady() bool {
	return e.State.SampleCount >= minSamples
}

func varianceOfLast(data []float64, window int) float64 {
	n := len(data)
	if n > window {
		n = window
	}
	if n < 2 {
		return 0
	}
	start := len(data) - n
	nf := float64(n)

	var sum float64
	for i := start; i < len(data); i++ {
		sum += data[i]
	}
	mean := sum / nf

	var varSum float64
	for i := start; i < len(data); i++ {
		d := data[i] - mean
		varSum += d * d
	}
	return varSum / (nf - 1.0)
}
