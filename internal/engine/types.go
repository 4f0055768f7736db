// Package engine owns the mutable trading state and the single decision
// loop that drives it: the position-management state machine, settlement
// resolution, and lifecycle transitions. It is the sole mutator of
// ModelState, OpenPositions, the active market, and the calibrators; the
// storage writer and dashboard subscribers only ever see what the engine
// chooses to emit.
package engine

import "math"

// Lifecycle is the engine's four-state machine.
type Lifecycle int

const (
	Connecting Lifecycle = iota
	Syncing
	Trading
	Halted
)

func (s Lifecycle) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Syncing:
		return "syncing"
	case Trading:
		return "trading"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// ActiveMarket is the single binary contract currently being priced. At
// most one exists at any moment.
type ActiveMarket struct {
	Ticker         string
	EventTicker    string
	SeriesTicker   string
	Strike         *float64
	YesBid         *string
	YesAsk         *string
	NoBid          *string
	NoAsk          *string
	LastPrice      *string
	CloseTime      string
	ExpirationTime string
	Status         string
	Result         *string
}

// OpenPosition is a live paper position with enough detail for
// mark-to-market and adaptive exit/scale management.
type OpenPosition struct {
	TradeID          string
	MarketTicker     string
	Side             string // "yes" | "no"
	EntryPrice       float64
	Contracts        float64
	ModelProbability float64
	EntryTick        uint64
	EntryBTCPrice    float64
	PeakUnrealized   float64
	Leg              uint32
	FeesEstimate     float64
}

const maxTradeReturns = 500

// ModelState tracks one pricing model's running performance, Bayesian
// priors, and open positions.
type ModelState struct {
	Name             string
	Probability      float64
	EV               float64
	KellySize        float64
	CumulativePnL    float64
	TotalTrades      int64
	WinningTrades    int64
	Sharpe           float64
	MaxDrawdown      float64
	BrierScore       float64
	DailyPnL         float64
	CurrentExposure  float64
	PeakEquity       float64
	TradeReturns     []float64
	BetaAlpha        float64
	BetaBeta         float64
	brierSum         float64
	brierCount       int64
	UnrealizedPnL    float64
	OpenPositions    []OpenPosition
}

// NewModelState seeds a model's running state with a Beta(20,20) prior
// centered on 0.5, matching the reference engine's conservative starting
// posterior.
func NewModelState(name string) *ModelState {
	return &ModelState{
		Name:      name,
		BetaAlpha: 20.0,
		BetaBeta:  20.0,
	}
}

func (s *ModelState) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades)
}

func (s *ModelState) ComputeSharpe() {
	n := len(s.TradeReturns)
	if n < 2 {
		s.Sharpe = 0
		return
	}
	nf := float64(n)
	var sum float64
	for _, r := range s.TradeReturns {
		sum += r
	}
	mean := sum / nf

	var sq float64
	for _, r := range s.TradeReturns {
		d := r - mean
		sq += d * d
	}
	variance := sq / (nf - 1)
	std := sqrtf(variance)
	if std < 1e-12 {
		s.Sharpe = 0
		return
	}
	annualization := sqrtf(96.0 * 365.0)
	s.Sharpe = (mean / std) * annualization
}

func (s *ModelState) ComputeBrier() {
	if s.brierCount == 0 {
		s.BrierScore = 0
		return
	}
	s.BrierScore = s.brierSum / float64(s.brierCount)
}

func (s *ModelState) RecordBrier(modelProbability, outcomeVal float64) {
	diff := modelProbability - outcomeVal
	s.brierSum += diff * diff
	s.brierCount++
	s.ComputeBrier()
}

func (s *ModelState) RecordReturn(ret float64) {
	if len(s.TradeReturns) >= maxTradeReturns {
		s.TradeReturns = s.TradeReturns[1:]
	}
	s.TradeReturns = append(s.TradeReturns, ret)
}

func (s *ModelState) UpdateDrawdown() {
	if s.CumulativePnL > s.PeakEquity {
		s.PeakEquity = s.CumulativePnL
	}
	dd := s.PeakEquity - s.CumulativePnL
	if dd > s.MaxDrawdown {
		s.MaxDrawdown = dd
	}
}

func sqrtf(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
