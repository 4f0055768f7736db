package scanner

import (
	"context"
	"time"

	"btcdigital/internal/engine"
	"btcdigital/internal/logger"
)

// PriceFeedPoller samples the external BTC/USD feed at a fixed cadence and
// emits a BtcPriceEvent for every successful sample. It only updates the
// engine's view of spot price; it never itself drives a pricing pass —
// that is TickProducer's job, kept separate so the decision cadence isn't
// coupled to how often the upstream feed happens to answer.
type PriceFeedPoller struct {
	feed   *PriceFeedClient
	events chan<- engine.Event
}

func NewPriceFeedPoller(feed *PriceFeedClient, events chan<- engine.Event) *PriceFeedPoller {
	return &PriceFeedPoller{feed: feed, events: events}
}

// Run polls every period until ctx is canceled. A fetch failure is
// logged and skipped rather than stopping the loop; a stale feed shows
// up in the dashboard as a stalled price count instead of crashing.
func (p *PriceFeedPoller) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price, err := p.feed.GetBTCPrice(ctx)
			if err != nil {
				logger.Warn("PRICEFEED", err.Error())
				continue
			}
			select {
			case p.events <- engine.BtcPriceEvent{Price: price, TimestampMs: time.Now().UnixMilli()}:
			default:
				logger.Warn("PRICEFEED", "engine event channel full, dropping price event")
			}
		}
	}
}

// TickProducer pushes a TickEvent onto the engine's input queue once per
// period, driving the decision loop's pricing/position-management pass
// independently of price-feed or scanner cadence.
type TickProducer struct {
	events chan<- engine.Event
}

func NewTickProducer(events chan<- engine.Event) *TickProducer {
	return &TickProducer{events: events}
}

func (t *TickProducer) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case t.events <- engine.TickEvent{}:
			default:
				logger.Warn("ENGINE", "engine event channel full, dropping tick")
			}
		}
	}
}
