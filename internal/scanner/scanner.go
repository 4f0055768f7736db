package scanner

import (
	"context"
	"math"
	"strconv"
	"time"

	"btcdigital/internal/engine"
	"btcdigital/internal/enginerr"
	"btcdigital/internal/logger"
)

const maxTrackedSettlements = 20

// MarketScanner periodically finds the best candidate market to trade and
// polls previously-active markets for settlement, emitting Events onto the
// engine's input channel.
type MarketScanner struct {
	venue  *VenueClient
	events chan<- engine.Event

	pendingSettlement []string
}

func NewMarketScanner(venue *VenueClient, events chan<- engine.Event) *MarketScanner {
	return &MarketScanner{venue: venue, events: events}
}

// Run polls the venue every interval: it looks for a new active market
// (the engine only ever tracks one at a time) and polls every market it
// has previously tracked for settlement, regardless of whether it is
// still the current active market, since settlement can lag behind the
// scanner moving on to the next contract.
func (s *MarketScanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanForMarket(ctx)
			s.pollSettlements(ctx)
		}
	}
}

// scanForMarket lists active binary markets and, among those closing
// within 60 seconds of the earliest available close time, picks the one
// whose yes_ask is closest to $0.50 — the contract with the most
// informative two-sided price. The chosen ticker is added to the
// settlement-tracking list so its eventual result is not missed even
// after a newer market becomes active.
func (s *MarketScanner) scanForMarket(ctx context.Context) {
	markets, err := s.venue.ListMarkets(ctx, "active")
	if err != nil {
		logger.Warn("SCANNER", err.Error())
		return
	}

	best, ok := findBestMarket(markets)
	if !ok {
		return
	}

	active, err := s.marketToActive(best)
	if err != nil {
		logger.Warn("SCANNER", "skipping market "+best.Ticker+": "+err.Error())
		return
	}

	select {
	case s.events <- engine.MarketUpdateEvent{Market: active}:
		s.trackSettlement(best.Ticker)
	default:
		logger.Warn("SCANNER", "engine event channel full, dropping market update event")
	}
}

// trackSettlement appends ticker to the settlement-tracking list, capped
// at maxTrackedSettlements by dropping the oldest entry, and skipping a
// ticker already tracked.
func (s *MarketScanner) trackSettlement(ticker string) {
	for _, t := range s.pendingSettlement {
		if t == ticker {
			return
		}
	}
	s.pendingSettlement = append(s.pendingSettlement, ticker)
	if len(s.pendingSettlement) > maxTrackedSettlements {
		s.pendingSettlement = s.pendingSettlement[len(s.pendingSettlement)-maxTrackedSettlements:]
	}
}

// pollSettlements checks every tracked ticker for a terminal status or a
// populated result, emitting MarketSettledEvent and dropping it from the
// tracking list on resolution.
func (s *MarketScanner) pollSettlements(ctx context.Context) {
	if len(s.pendingSettlement) == 0 {
		return
	}

	remaining := s.pendingSettlement[:0]
	for _, ticker := range s.pendingSettlement {
		m, err := s.venue.GetMarket(ctx, ticker)
		if err != nil {
			logger.Warn("SCANNER", err.Error())
			remaining = append(remaining, ticker)
			continue
		}
		if !m.isSettled() {
			remaining = append(remaining, ticker)
			continue
		}

		result := ""
		if m.Result != nil {
			result = *m.Result
		}
		select {
		case s.events <- engine.MarketSettledEvent{Ticker: ticker, Result: result}:
		default:
			logger.Warn("SCANNER", "engine event channel full, dropping settlement event")
			remaining = append(remaining, ticker)
		}
	}
	s.pendingSettlement = remaining
}

// findBestMarket groups active binary markets with a parseable, still-future
// close time by proximity to the earliest close time among them (within a
// 60-second tolerance, since the venue lists several near-simultaneous
// contracts per window), then picks the one whose yes_ask sits closest to
// $0.50 — the two-sided price with the least embedded directional bias.
// Ties are broken by truncated integer distance, matching the venue
// reference scanner's deterministic ordering.
func findBestMarket(markets []venueMarket) (venueMarket, bool) {
	now := time.Now()

	var candidates []venueMarket
	var earliestClose time.Time
	found := false

	for _, m := range markets {
		if m.Strike == nil || m.MarketType != "binary" {
			continue
		}
		closeTime, err := time.Parse(time.RFC3339, m.CloseTime)
		if err != nil || !closeTime.After(now) {
			continue
		}
		candidates = append(candidates, m)
		if !found || closeTime.Before(earliestClose) {
			earliestClose = closeTime
			found = true
		}
	}
	if !found {
		return venueMarket{}, false
	}

	var best venueMarket
	bestDistance := int64(math.MaxInt64)
	picked := false

	for _, m := range candidates {
		closeTime, err := time.Parse(time.RFC3339, m.CloseTime)
		if err != nil {
			continue
		}
		if closeTime.Sub(earliestClose) > 60*time.Second {
			continue
		}

		yesAsk, ok := parseDollarFraction(m.YesAsk)
		if !ok {
			continue
		}
		distance := int64(math.Abs(yesAsk-0.50) * 10000.0)
		if !picked || distance < bestDistance {
			best = m
			bestDistance = distance
			picked = true
		}
	}
	return best, picked
}

func parseDollarFraction(s *string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *MarketScanner) marketToActive(m venueMarket) (engine.ActiveMarket, error) {
	if m.Strike == nil {
		return engine.ActiveMarket{}, enginerr.New(enginerr.Parse, "market has no strike")
	}
	strike, err := strconv.ParseFloat(*m.Strike, 64)
	if err != nil {
		return engine.ActiveMarket{}, enginerr.Wrap(enginerr.Parse, "parse strike", err)
	}

	return engine.ActiveMarket{
		Ticker:         m.Ticker,
		EventTicker:    m.EventTicker,
		SeriesTicker:   s.venue.seriesTicker,
		Strike:         &strike,
		YesBid:         m.YesBid,
		YesAsk:         m.YesAsk,
		NoBid:          m.NoBid,
		NoAsk:          m.NoAsk,
		LastPrice:      m.LastPrice,
		CloseTime:      m.CloseTime,
		ExpirationTime: m.ExpirationTime,
		Status:         m.Status,
		Result:         m.Result,
	}, nil
}
