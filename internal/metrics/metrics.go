// Package metrics exposes the engine's PerfCounters as Prometheus series
// so the paper-trading process can be scraped like any other long-running
// service, instead of only viewed through the dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"btcdigital/internal/engine"
)

var (
	ticksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcdigital_ticks_processed_total",
		Help: "Price ticks processed by the engine.",
	})
	tradesOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcdigital_trades_opened_total",
		Help: "Paper trades opened across all models.",
	})
	tradesClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcdigital_trades_closed_total",
		Help: "Paper trades closed across all models.",
	})
	dbWritesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcdigital_db_writes_failed_total",
		Help: "Storage writes that failed.",
	})
	cumulativePnL = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "btcdigital_model_cumulative_pnl",
		Help: "Cumulative realized PnL per pricing model.",
	}, []string{"model"})
	modelProbability = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "btcdigital_model_probability",
		Help: "Current calibrated win probability per pricing model.",
	}, []string{"model"})
)

func init() {
	prometheus.MustRegister(ticksProcessed, tradesOpened, tradesClosed, dbWritesFailed, cumulativePnL, modelProbability)
}

// Handler returns the /metrics HTTP handler for the Prometheus scraper.
func Handler() http.Handler {
	return promhttp.Handler()
}

// lastTotals tracks the last cumulative value observed for each counter,
// since prometheus.Counter only exposes Add (a delta), while PerfCounters
// reports running totals.
var lastTotals struct {
	ticks, opened, closed, dbFailed uint64
}

// Observe copies a fresh snapshot's counters into the Prometheus series.
func Observe(snap engine.EngineSnapshot) {
	advance(ticksProcessed, &lastTotals.ticks, snap.Perf.TicksProcessed)
	advance(tradesOpened, &lastTotals.opened, snap.Perf.TradesOpened)
	advance(tradesClosed, &lastTotals.closed, snap.Perf.TradesClosed)
	advance(dbWritesFailed, &lastTotals.dbFailed, snap.Perf.DbWritesFailed)

	for _, m := range snap.Models {
		cumulativePnL.WithLabelValues(m.Name).Set(m.CumulativePnL)
		modelProbability.WithLabelValues(m.Name).Set(m.Probability)
	}
}

func advance(c prometheus.Counter, last *uint64, total uint64) {
	if total > *last {
		c.Add(float64(total - *last))
		*last = total
	}
}
