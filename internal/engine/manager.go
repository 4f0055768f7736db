package engine

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"btcdigital/internal/calibration"
	"btcdigital/internal/execution"
	"btcdigital/internal/models"
	"btcdigital/internal/risk"
	"btcdigital/internal/vol"
)

const (
	feeRate         = 0.02
	slippage        = 0.005
	fillProbability = 0.90
)

// Config is the subset of application configuration the position manager
// needs to make sizing and admission decisions. Kept narrow and decoupled
// from internal/config so engine has no import-cycle risk with the
// process bootstrap package.
type Config struct {
	FractionalKelly  float64
	MaxPositionSize  float64
	EVThreshold      float64
	MaxDailyDrawdown float64
}

// Engine is the single owner of all mutable trading state. Every exported
// method except Snapshot is called from exactly one goroutine (the engine
// loop in loop.go); there is no internal locking.
//
// The three pricing models, their ModelState, and their Calibrator are
// kept as parallel, index-paired slices rather than a map: this is the
// capability set {probability} over the fixed {BS, JumpDiffusion,
// StudentT} variant set, and iterating it on every tick should not pay
// for map bucket hashing.
type Engine struct {
	cfg Config

	Lifecycle      Lifecycle
	BTCPrice       float64
	BTCTimestampMs int64
	ActiveMarket   *ActiveMarket
	TickCount      uint64
	pricesReceived uint64

	modelNames    []string
	pricingModels []models.PricingModel
	modelStates   []*ModelState
	calibrators   []*calibration.Calibrator
	volEstimator  *vol.Estimator

	Perf *PerfCounters

	WsOut chan WsMessage
	DbOut chan DbCommand

	// snapshot is the single-writer-multi-reader slot spec.md §5/§9
	// requires: the engine goroutine is the only writer (via
	// publishSnapshot, called once per handled event), and any other
	// goroutine (metricsLoop, the HTTP status handler) reads it with
	// Snapshot(), never by touching the live fields above directly.
	snapshot atomic.Pointer[EngineSnapshot]
}

// New constructs an engine pre-seeded with the three reference pricing
// models (Black-Scholes, Merton jump-diffusion, Student-t), each with its
// own running posterior and calibrator.
func New(cfg Config) *Engine {
	names := []string{"black_scholes", "jump_diffusion", "student_t"}
	pricing := []models.PricingModel{
		models.NewBlackScholes(),
		models.NewJumpDiffusion(),
		models.NewStudentT(),
	}

	e := &Engine{
		cfg:           cfg,
		Lifecycle:     Connecting,
		modelNames:    names,
		pricingModels: pricing,
		modelStates:   make([]*ModelState, len(names)),
		calibrators:   make([]*calibration.Calibrator, len(names)),
		volEstimator:  vol.NewEstimator(),
		Perf:          &PerfCounters{},
		WsOut:         make(chan WsMessage, 2048),
		DbOut:         make(chan DbCommand, 1024),
	}
	for i, n := range names {
		e.modelStates[i] = NewModelState(n)
		e.calibrators[i] = calibration.New()
	}
	e.publishSnapshot()
	return e
}

func (e *Engine) emitWs(msg WsMessage) {
	select {
	case e.WsOut <- msg:
		e.Perf.WsMessageSent()
	default:
	}
}

func (e *Engine) emitDb(cmd DbCommand) {
	select {
	case e.DbOut <- cmd:
	default:
		e.Perf.DbWriteFailed()
	}
}

func (e *Engine) stateByName(name string) *ModelState {
	for i, n := range e.modelNames {
		if n == name {
			return e.modelStates[i]
		}
	}
	return nil
}

func (e *Engine) calibratorByName(name string) *calibration.Calibrator {
	for i, n := range e.modelNames {
		if n == name {
			return e.calibrators[i]
		}
	}
	return nil
}

// HandleBtcPrice applies one spot observation: it updates the volatility
// estimator, advances Connecting->Syncing on the first price, broadcasts
// the price to dashboard subscribers, and throttles the durable price
// history to every 5th sample.
func (e *Engine) HandleBtcPrice(price float64, timestampMs int64) {
	e.BTCPrice = price
	e.BTCTimestampMs = timestampMs
	e.volEstimator.Update(price)
	e.pricesReceived++
	e.Perf.PriceReceived()

	ts := formatMillis(timestampMs)

	switch e.Lifecycle {
	case Connecting:
		e.Lifecycle = Syncing
		e.emitWs(WsEngineState{State: "syncing", Reason: "first price received"})
	case Syncing:
		if e.volEstimator.IsReady() && e.ActiveMarket != nil {
			e.Lifecycle = Trading
			e.emitWs(WsEngineState{State: "trading", Reason: "vol ready, market active"})
		}
	}

	e.emitWs(WsBtcPrice{Price: price, Timestamp: ts})

	if e.pricesReceived%5 == 0 {
		e.emitDb(InsertBtcPriceCmd{Timestamp: ts, Price: price})
	}
}

// HandleMarketUpdate adopts the scanner's current best-candidate market.
// Switching to a different ticker clears every model's open positions,
// since those legs belonged to the market being replaced.
func (e *Engine) HandleMarketUpdate(market ActiveMarket) {
	now := time.Now()
	ttl := ttlSecondsFor(market.CloseTime, now)

	e.emitWs(WsMarketState{
		Ticker:     market.Ticker,
		Strike:     market.Strike,
		TTLSeconds: ttl,
		YesBid:     market.YesBid,
		YesAsk:     market.YesAsk,
		Status:     market.Status,
	})

	isNew := e.ActiveMarket == nil || e.ActiveMarket.Ticker != market.Ticker
	if isNew {
		for _, st := range e.modelStates {
			st.OpenPositions = nil
			st.UnrealizedPnL = 0
		}
		e.emitDb(InsertMarketCmd{
			Ticker:         market.Ticker,
			EventTicker:    market.EventTicker,
			SeriesTicker:   market.SeriesTicker,
			StrikePrice:    market.Strike,
			CloseTime:      market.CloseTime,
			ExpirationTime: market.ExpirationTime,
		})
	}

	e.ActiveMarket = &market

	if e.Lifecycle == Syncing && e.volEstimator.IsReady() {
		e.Lifecycle = Trading
		e.emitWs(WsEngineState{State: "trading", Reason: "market + vol ready"})
	}
}

// HandleTick advances the tick counter and, once the engine is Trading,
// runs the full four-phase decision loop described in the position
// manager's priority-ordered state machine.
func (e *Engine) HandleTick() {
	e.TickCount++
	e.Perf.TickProcessed()

	if e.Lifecycle != Trading {
		return
	}
	if e.BTCPrice <= 0 {
		return
	}

	e.processTick(time.Now())
}

func ttlSecondsFor(closeTime string, now time.Time) float64 {
	ct, err := time.Parse(time.RFC3339, closeTime)
	if err != nil {
		return -1
	}
	return ct.Sub(now).Seconds()
}

// processTick is the hot decision path: pure computation over in-memory
// state, no I/O. It recomputes ModelParams once and runs the four phases
// for each (model, state, calibrator) triple.
func (e *Engine) processTick(now time.Time) {
	market := e.ActiveMarket
	if market == nil || market.Strike == nil || *market.Strike <= 0 {
		for _, st := range e.modelStates {
			st.UnrealizedPnL = 0
		}
		return
	}

	yesAsk := parseCents(market.YesAsk)
	yesBid := parseCents(market.YesBid)
	if yesAsk <= 0 || yesAsk >= 1 {
		return
	}

	ttlSeconds := ttlSecondsFor(market.CloseTime, now)
	if ttlSeconds <= 0 {
		return
	}

	sigma := e.volEstimator.AnnualizedVol()
	params := models.NewParams(e.BTCPrice, *market.Strike, ttlSeconds, sigma)
	volCtx := models.VolContext{
		JumpIntensity: e.volEstimator.State.JumpIntensity,
		JumpMean:      e.volEstimator.State.JumpMean,
		JumpVar:       e.volEstimator.State.JumpVar,
		StudentTNu:    e.volEstimator.State.StudentTNu,
	}

	btcDistance := e.BTCPrice - *market.Strike
	ts := now.Format(time.RFC3339)

	for i := range e.pricingModels {
		e.processModel(i, market, yesBid, yesAsk, ttlSeconds, btcDistance, params, volCtx, ts, now)
	}
}

func (e *Engine) processModel(
	i int,
	market *ActiveMarket,
	yesBid, yesAsk, ttlSeconds, btcDistance float64,
	params models.Params,
	volCtx models.VolContext,
	ts string,
	now time.Time,
) {
	name := e.modelNames[i]
	model := e.pricingModels[i]
	st := e.modelStates[i]
	cal := e.calibrators[i]

	raw := model.Probability(params, volCtx)
	prob := cal.Calibrate(raw)

	evRes := execution.Compute(execution.Params{
		Probability:     prob,
		ContractPrice:   yesAsk,
		FeeRate:         feeRate,
		Slippage:        slippage,
		FillProbability: fillProbability,
	}, e.cfg.EVThreshold)

	winProb := prob
	kellyPrice := yesAsk
	if !evRes.BuyYes {
		winProb = 1 - prob
		kellyPrice = 1 - yesAsk
	}
	kellyRes := risk.ComputeKelly(risk.KellyParams{
		ModelProbability: winProb,
		Alpha:            st.BetaAlpha,
		Beta:             st.BetaBeta,
		ContractPrice:    kellyPrice,
		FractionalGamma:  e.cfg.FractionalKelly,
		Lambda:           0.5,
		MaxPosition:       e.cfg.MaxPositionSize,
	})
	paperContracts := kellyRes.Contracts
	if paperContracts > 0 {
		paperContracts = maxf(paperContracts, 1.0)
	}

	st.Probability = prob
	st.EV = evRes.EV
	st.KellySize = paperContracts

	// ── Phase 1: mark-to-market + peak tracking ──
	for idx := range st.OpenPositions {
		pos := &st.OpenPositions[idx]
		currentBid := sideBid(pos.Side, yesBid, yesAsk)
		unrealized := (currentBid - pos.EntryPrice) * pos.Contracts
		if unrealized > pos.PeakUnrealized {
			pos.PeakUnrealized = unrealized
		}
	}
	st.UnrealizedPnL = totalUnrealized(st.OpenPositions, yesBid, yesAsk)

	// ── Phase 2: exit checks, priority ordered ──
	var exitIdx []int
	var exitReason []string
	var partialIdx []int

	for idx, pos := range st.OpenPositions {
		currentBid := sideBid(pos.Side, yesBid, yesAsk)
		entryCost := pos.EntryPrice * pos.Contracts
		unrealized := (currentBid - pos.EntryPrice) * pos.Contracts
		holdTicks := e.TickCount - pos.EntryTick
		isNew := holdTicks < MinHoldTicks
		positionIsYes := pos.Side == "yes"

		btcAgainstUs := false
		if positionIsYes {
			btcAgainstUs = e.BTCPrice < *market.Strike-StrikeCrossBuffer
		} else {
			btcAgainstUs = e.BTCPrice > *market.Strike+StrikeCrossBuffer
		}
		if btcAgainstUs {
			exitIdx = append(exitIdx, idx)
			exitReason = append(exitReason, "strike_cross")
			continue
		}

		if isNew {
			continue
		}

		if entryCost > 0 && unrealized < -(entryCost*HardStopLossPct) {
			exitIdx = append(exitIdx, idx)
			exitReason = append(exitReason, "stop_loss")
			continue
		}

		if pos.PeakUnrealized > entryCost*0.10 {
			trailingThreshold := pos.PeakUnrealized * (1 - TrailingStopPct)
			if unrealized < trailingThreshold {
				exitIdx = append(exitIdx, idx)
				exitReason = append(exitReason, "trailing_stop")
				continue
			}
		}

		if entryCost > 0 && unrealized > entryCost*FullTakeProfitPct {
			exitIdx = append(exitIdx, idx)
			exitReason = append(exitReason, "take_profit")
			continue
		}

		if entryCost > 0 && unrealized > entryCost*PartialTakeProfitPct && pos.Contracts > 1.5 && pos.Leg == 0 {
			partialIdx = append(partialIdx, idx)
			continue
		}

		if ttlSeconds < UncertainExitSeconds {
			onRightSide := (positionIsYes && e.BTCPrice > *market.Strike) || (!positionIsYes && e.BTCPrice < *market.Strike)
			stronglyWinning := absf(btcDistance) > ResolutionHoldDistanceCents

			if ttlSeconds < ResolutionHoldSeconds && onRightSide && stronglyWinning {
				continue // hold to resolution
			}
			if !onRightSide || !stronglyWinning {
				exitIdx = append(exitIdx, idx)
				exitReason = append(exitReason, "time_exit")
				continue
			}
		}
	}

	e.executePartialExits(st, name, partialIdx, yesBid, yesAsk, ts)
	e.executeFullExits(st, name, exitIdx, exitReason, yesBid, yesAsk, ts)

	st.UnrealizedPnL = totalUnrealized(st.OpenPositions, yesBid, yesAsk)

	// ── Phase 3: scale-in ──
	e.evaluateScaleIn(st, name, market, yesAsk, ttlSeconds, evRes, prob, kellyRes, now)

	// ── Phase 4: new entry ──
	e.evaluateEntry(st, name, market, yesAsk, ttlSeconds, evRes, prob, paperContracts, kellyRes, now)

	st.UnrealizedPnL = totalUnrealized(st.OpenPositions, yesBid, yesAsk)

	totalPnL := st.CumulativePnL + st.UnrealizedPnL
	e.emitWs(WsModelUpdate{
		Model:             name,
		Probability:       prob,
		EV:                evRes.EV,
		KellySize:         paperContracts,
		CumulativePnL:     st.CumulativePnL,
		UnrealizedPnL:     st.UnrealizedPnL,
		TotalPnL:          totalPnL,
		TotalTrades:       st.TotalTrades,
		WinningTrades:     st.WinningTrades,
		Sharpe:            st.Sharpe,
		MaxDrawdown:       st.MaxDrawdown,
		BrierScore:        st.BrierScore,
		DailyPnL:          st.DailyPnL,
		CurrentExposure:   st.CurrentExposure,
		OpenPositionCount: len(st.OpenPositions),
	})

	sigma := e.volEstimator.State.EWMAVol
	regime := e.volEstimator.State.Regime.String()
	ticker := market.Ticker
	e.emitDb(InsertSnapshotCmd{
		ModelName:     name,
		Timestamp:     ts,
		BTCPrice:      e.BTCPrice,
		MarketTicker:  &ticker,
		Probability:   &prob,
		EV:            &evRes.EV,
		KellySize:     &kellyRes.Contracts,
		CumulativePnL: st.CumulativePnL + st.UnrealizedPnL,
		Volatility:    &sigma,
		Regime:        &regime,
	})
}

func sideBid(side string, yesBid, yesAsk float64) float64 {
	if side == "yes" {
		return yesBid
	}
	return 1 - yesAsk
}

func totalUnrealized(positions []OpenPosition, yesBid, yesAsk float64) float64 {
	var total float64
	for _, p := range positions {
		bid := sideBid(p.Side, yesBid, yesAsk)
		total += (bid - p.EntryPrice) * p.Contracts
	}
	return total
}

func (e *Engine) executePartialExits(st *ModelState, name string, partialIdx []int, yesBid, yesAsk float64, ts string) {
	for _, idx := range partialIdx {
		if idx >= len(st.OpenPositions) {
			continue
		}
		pos := &st.OpenPositions[idx]
		exitContracts := maxf(floorf(pos.Contracts*0.5), 1.0)
		if exitContracts >= pos.Contracts {
			continue
		}
		exitPrice := maxf(sideBid(pos.Side, yesBid, yesAsk), 0.01)
		fee := exitPrice * exitContracts * feeRate
		pnl := (exitPrice-pos.EntryPrice)*exitContracts - fee

		pos.Contracts -= exitContracts
		st.CumulativePnL += pnl
		st.DailyPnL += pnl
		st.CurrentExposure = maxf(st.CurrentExposure-pos.EntryPrice*exitContracts, 0)

		if pnl > 0 {
			st.WinningTrades++
			st.BetaAlpha++
		}
		ret := pnl / maxf(pos.EntryPrice*exitContracts, 0.01)
		st.RecordReturn(ret)
		st.UpdateDrawdown()
		st.ComputeSharpe()

		e.Perf.TradeClosed()
		e.emitWs(WsNewTrade{Model: name, Side: pos.Side, Action: "partial sell", Price: exitPrice, Contracts: exitContracts, EV: pnl, Timestamp: ts})
		e.emitDb(InsertTradeCmd{
			ID:               pos.TradeID + "-partial",
			ModelName:        name,
			MarketTicker:     pos.MarketTicker,
			Side:             pos.Side,
			Action:           "sell",
			EntryPrice:       exitPrice,
			Contracts:        exitContracts,
			ModelProbability: pos.ModelProbability,
			EV:               pnl,
			KellyFraction:    0,
			FeesEstimate:     fee,
			EntryTime:        ts,
		})
	}
}

func (e *Engine) executeFullExits(st *ModelState, name string, exitIdx []int, exitReason []string, yesBid, yesAsk float64, ts string) {
	for j := len(exitIdx) - 1; j >= 0; j-- {
		idx := exitIdx[j]
		reason := exitReason[j]
		if idx >= len(st.OpenPositions) {
			continue
		}
		pos := st.OpenPositions[idx]
		st.OpenPositions = append(st.OpenPositions[:idx], st.OpenPositions[idx+1:]...)

		exitPrice := maxf(sideBid(pos.Side, yesBid, yesAsk), 0.01)
		fee := exitPrice * pos.Contracts * feeRate
		pnl := (exitPrice-pos.EntryPrice)*pos.Contracts - fee

		st.CumulativePnL += pnl
		st.DailyPnL += pnl
		st.CurrentExposure = maxf(st.CurrentExposure-pos.EntryPrice*pos.Contracts, 0)

		if pnl > 0 {
			st.WinningTrades++
			st.BetaAlpha++
		} else {
			st.BetaBeta++
		}
		ret := pnl / maxf(pos.EntryPrice*pos.Contracts, 0.01)
		st.RecordReturn(ret)
		st.UpdateDrawdown()
		st.ComputeSharpe()

		e.Perf.TradeClosed()
		e.emitDb(ExitTradeCmd{TradeID: pos.TradeID, ExitPrice: exitPrice, PnL: pnl, Reason: reason, ExitTime: ts})
		e.emitWs(WsTradeExited{Model: name, TradeID: pos.TradeID, Side: pos.Side, EntryPrice: pos.EntryPrice, ExitPrice: exitPrice, Contracts: pos.Contracts, PnL: pnl, Reason: reason, Timestamp: ts})
		e.emitWs(WsNewTrade{Model: name, Side: pos.Side, Action: "sell (" + reason + ")", Price: exitPrice, Contracts: pos.Contracts, EV: pnl, Timestamp: ts})
	}
}

func (e *Engine) evaluateScaleIn(
	st *ModelState, name string, market *ActiveMarket, yesAsk, ttlSeconds float64,
	evRes execution.Result, prob float64, kellyRes risk.KellyResult, now time.Time,
) {
	if len(st.OpenPositions) == 0 || ttlSeconds <= MinEntryTTLSeconds {
		return
	}
	var maxLeg uint32
	for _, p := range st.OpenPositions {
		if p.Leg > maxLeg {
			maxLeg = p.Leg
		}
	}
	if maxLeg >= MaxLegs-1 {
		return
	}

	first := st.OpenPositions[0]
	move := e.BTCPrice - first.EntryBTCPrice
	movedInFavor := false
	if first.Side == "yes" {
		movedInFavor = move > ScaleInMove
	} else {
		movedInFavor = move < -ScaleInMove
	}
	if !movedInFavor || st.UnrealizedPnL <= 0 || !evRes.IsSignal {
		return
	}

	scaleSide := first.Side
	scalePrice := yesAsk
	if scaleSide != "yes" {
		scalePrice = 1 - yesAsk
	}
	scaleContracts := 1.0

	check := riskCheck(st, e.volEstimator, scaleContracts, scalePrice, e.cfg)
	if !check.Allowed() {
		return
	}

	ts := now.Format(time.RFC3339)
	tradeID := uuid.NewString()
	pos := OpenPosition{
		TradeID:          tradeID,
		MarketTicker:     market.Ticker,
		Side:             scaleSide,
		EntryPrice:       scalePrice,
		Contracts:        scaleContracts,
		ModelProbability: prob,
		EntryTick:        e.TickCount,
		EntryBTCPrice:    e.BTCPrice,
		Leg:              maxLeg + 1,
		FeesEstimate:     scalePrice * scaleContracts * feeRate,
	}
	st.OpenPositions = append(st.OpenPositions, pos)
	st.CurrentExposure += scaleContracts * scalePrice
	st.TotalTrades++

	e.Perf.TradeOpened()
	e.emitDb(InsertTradeCmd{
		ID:               tradeID,
		ModelName:        name,
		MarketTicker:     market.Ticker,
		Side:             scaleSide,
		Action:           "scale_in",
		EntryPrice:       scalePrice,
		Contracts:        scaleContracts,
		ModelProbability: prob,
		EV:               evRes.EV,
		KellyFraction:    kellyRes.RobustFraction,
		FeesEstimate:     pos.FeesEstimate,
		EntryTime:        ts,
	})
	e.emitWs(WsNewTrade{Model: name, Side: scaleSide, Action: "scale in", Price: scalePrice, Contracts: scaleContracts, EV: evRes.EV, Timestamp: ts})
}

func (e *Engine) evaluateEntry(
	st *ModelState, name string, market *ActiveMarket, yesAsk, ttlSeconds float64,
	evRes execution.Result, prob, paperContracts float64, kellyRes risk.KellyResult, now time.Time,
) {
	if !evRes.IsSignal || paperContracts <= 0 || len(st.OpenPositions) > 0 || ttlSeconds <= MinEntryTTLSeconds {
		return
	}

	side := "yes"
	price := yesAsk
	if !evRes.BuyYes {
		side = "no"
		price = 1 - yesAsk
	}

	check := riskCheck(st, e.volEstimator, paperContracts, price, e.cfg)
	if !check.Allowed() {
		return
	}

	ts := now.Format(time.RFC3339)
	tradeID := uuid.NewString()
	pos := OpenPosition{
		TradeID:          tradeID,
		MarketTicker:     market.Ticker,
		Side:             side,
		EntryPrice:       price,
		Contracts:        paperContracts,
		ModelProbability: prob,
		EntryTick:        e.TickCount,
		EntryBTCPrice:    e.BTCPrice,
		Leg:              0,
		FeesEstimate:     price * paperContracts * feeRate,
	}
	st.OpenPositions = append(st.OpenPositions, pos)
	st.CurrentExposure += paperContracts * price
	st.TotalTrades++

	e.Perf.TradeOpened()
	e.emitDb(InsertTradeCmd{
		ID:               tradeID,
		ModelName:        name,
		MarketTicker:     market.Ticker,
		Side:             side,
		Action:           "buy",
		EntryPrice:       price,
		Contracts:        paperContracts,
		ModelProbability: prob,
		EV:               evRes.EV,
		KellyFraction:    kellyRes.RobustFraction,
		FeesEstimate:     pos.FeesEstimate,
		EntryTime:        ts,
	})
	e.emitWs(WsNewTrade{Model: name, Side: side, Action: "buy", Price: price, Contracts: paperContracts, EV: evRes.EV, Timestamp: ts})
}

func riskCheck(st *ModelState, volEstimator *vol.Estimator, contracts, price float64, cfg Config) risk.Check {
	return risk.CheckLimits(risk.LimitsInput{
		DailyPnL:          st.DailyPnL,
		CurrentExposure:   st.CurrentExposure,
		MaxDrawdown:       st.MaxDrawdown,
		HighVolRegime:     volEstimator.State.Regime == vol.High,
		ProposedContracts: contracts,
		ProposedPrice:     price,
		MaxDailyDrawdown:  cfg.MaxDailyDrawdown,
		MaxPosition:       cfg.MaxPositionSize,
	})
}

func parseCents(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}

func floorf(a float64) float64 {
	return float64(int64(a))
}

// publishSnapshot copies the live state into an immutable EngineSnapshot
// and stores it in the single-writer-multi-reader slot. It must only ever
// be called from the engine's own goroutine (loop.go, once per handled
// event), since it is the one place that reads the live fields directly.
func (e *Engine) publishSnapshot() {
	states := make([]ModelState, len(e.modelStates))
	for i, st := range e.modelStates {
		states[i] = *st
		states[i].OpenPositions = append([]OpenPosition(nil), st.OpenPositions...)
		states[i].TradeReturns = append([]float64(nil), st.TradeReturns...)
	}
	snap := EngineSnapshot{
		Lifecycle:    e.Lifecycle,
		BTCPrice:     e.BTCPrice,
		ActiveMarket: e.ActiveMarket,
		Volatility:   e.volEstimator.State,
		Models:       states,
		Perf:         e.Perf.Snapshot(),
		TickCount:    e.TickCount,
	}
	e.snapshot.Store(&snap)
}

// Snapshot returns the most recently published EngineSnapshot. Safe to
// call from any goroutine (metricsLoop, the HTTP status handler) — it only
// ever reads the atomic slot, never the engine's live fields.
func (e *Engine) Snapshot() EngineSnapshot {
	if p := e.snapshot.Load(); p != nil {
		return *p
	}
	return EngineSnapshot{}
}
