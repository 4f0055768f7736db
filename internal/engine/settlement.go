package engine

import "time"

// HandleSettlement resolves every pending (unsettled) trade for the given
// ticker against the venue's final result ("yes" or "no"). It blocks on a
// reply from the storage writer, which is the one sanctioned suspension
// point outside the engine's own decision path: settlement is driven by
// the scanner's poll cadence, not the tick hot path, so a brief wait here
// never stalls position management.
func (e *Engine) HandleSettlement(ticker, result string) {
	reply := make(chan []TradeRow, 1)
	e.emitDb(GetPendingTradesCmd{MarketTicker: ticker, Reply: reply})

	var pending []TradeRow
	select {
	case pending = <-reply:
	case <-time.After(2 * time.Second):
	}

	now := time.Now()
	ts := now.Format(time.RFC3339)

	for _, trade := range pending {
		st := e.stateByName(trade.ModelName)
		if st == nil {
			continue
		}

		won := trade.Side == result
		var pnl float64
		if won {
			pnl = (1-trade.EntryPrice)*trade.Contracts - trade.FeesEstimate
		} else {
			pnl = -trade.EntryPrice*trade.Contracts - trade.FeesEstimate
		}
		outcome := "loss"
		if won {
			outcome = "win"
		}

		st.CumulativePnL += pnl
		st.DailyPnL += pnl
		if won {
			st.WinningTrades++
			st.BetaAlpha++
		} else {
			st.BetaBeta++
		}
		st.CurrentExposure = maxf(st.CurrentExposure-trade.EntryPrice*trade.Contracts, 0)

		ret := pnl / maxf(trade.EntryPrice*trade.Contracts, 0.01)
		st.RecordReturn(ret)
		st.UpdateDrawdown()
		st.ComputeSharpe()

		outcomeVal := 0.0
		if result == "yes" {
			outcomeVal = 1.0
		}
		st.RecordBrier(trade.ModelProbability, outcomeVal)

		removeOpenPosition(st, trade.ID)
		st.UnrealizedPnL = 0

		cal := e.calibratorByName(trade.ModelName)
		if cal != nil {
			cal.Record(trade.ModelProbability, trade.Side == result)
		}

		e.Perf.TradeClosed()
		e.emitDb(SettleTradeCmd{TradeID: trade.ID, Outcome: outcome, PnL: pnl, SettleTime: ts})
		e.emitWs(WsTradeSettled{Model: trade.ModelName, TradeID: trade.ID, Outcome: outcome, PnL: pnl, Timestamp: ts})
	}

	for i, name := range e.modelNames {
		st := e.modelStates[i]
		e.emitWs(WsMetricsUpdate{
			Model:       name,
			Sharpe:      st.Sharpe,
			MaxDrawdown: st.MaxDrawdown,
			WinRate:     st.WinRate(),
			Brier:       st.BrierScore,
			TotalTrades: st.TotalTrades,
			DailyPnL:    st.DailyPnL,
		})
		e.emitDb(UpdateRiskStateCmd{
			ModelName:     name,
			Exposure:      st.CurrentExposure,
			DailyPnL:      st.DailyPnL,
			MaxDrawdown:   st.MaxDrawdown,
			PeakEquity:    st.PeakEquity,
			TotalTrades:   st.TotalTrades,
			WinningTrades: st.WinningTrades,
		})
	}

	e.emitDb(UpdateMarketResultCmd{Ticker: ticker, Result: result})

	if e.ActiveMarket != nil && e.ActiveMarket.Ticker == ticker {
		e.ActiveMarket = nil
	}
}

func removeOpenPosition(st *ModelState, tradeID string) {
	kept := st.OpenPositions[:0]
	for _, p := range st.OpenPositions {
		if p.TradeID != tradeID {
			kept = append(kept, p)
		}
	}
	st.OpenPositions = kept
}
