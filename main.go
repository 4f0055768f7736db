package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"btcdigital/internal/config"
	"btcdigital/internal/dashboard"
	"btcdigital/internal/engine"
	"btcdigital/internal/logger"
	"btcdigital/internal/metrics"
	"btcdigital/internal/scanner"
	"btcdigital/internal/storage"
)

var version = "dev"

const (
	priceFeedPeriod = 2 * time.Second // SAMPLE_PERIOD_S
	scanInterval    = 5 * time.Second
	tickPeriod      = 1 * time.Second
)

func main() {
	port := flag.Int("port", 0, "dashboard HTTP/WS port (overrides SERVER_PORT)")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}

	database, err := storage.Open()
	if err != nil {
		logger.Error("DB", fmt.Sprintf("failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	eng := engine.New(engine.Config{
		FractionalKelly:  cfg.FractionalKelly,
		MaxPositionSize:  cfg.MaxPositionSize,
		EVThreshold:      cfg.EVThreshold,
		MaxDailyDrawdown: cfg.MaxDailyDrawdown,
	})

	events := make(chan engine.Event, 256)

	venue := scanner.NewVenueClient(cfg.VenueBaseURL, cfg.SeriesTicker)
	priceFeed := scanner.NewPriceFeedClient(cfg.PriceFeedBaseURL, cfg.PriceFeedAPIKey)
	marketScanner := scanner.NewMarketScanner(venue, events)
	pricePoller := scanner.NewPriceFeedPoller(priceFeed, events)
	tickProducer := scanner.NewTickProducer(events)

	hub := dashboard.NewHub(eng.WsOut)
	server := dashboard.NewServer(hub, eng.Snapshot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every background loop is a pure consumer keyed off ctx; errgroup just
	// gives them a shared lifetime and a single point to Wait() on at
	// shutdown instead of scattering bare `go` statements.
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { hub.Run(); return nil })
	group.Go(func() error { database.Run(gctx, eng.DbOut, eng.Perf); return nil })
	group.Go(func() error { pricePoller.Run(gctx, priceFeedPeriod); return nil })
	group.Go(func() error { marketScanner.Run(gctx, scanInterval); return nil })
	group.Go(func() error { tickProducer.Run(gctx, tickPeriod); return nil })
	group.Go(func() error {
		eng.Run(gctx, events)
		// The engine is WsOut's only sender; closing it lets hub.Run return.
		close(eng.WsOut)
		return nil
	})
	group.Go(func() error { metricsLoop(gctx, eng); return nil })

	mux := server.Mux()
	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort)
	logger.Server(addr)

	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		logger.Info("SERVER", "shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("SERVER", fmt.Sprintf("shutdown error: %v", err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("SERVER", fmt.Sprintf("failed: %v", err))
		os.Exit(1)
	}

	if err := group.Wait(); err != nil {
		logger.Error("SERVER", fmt.Sprintf("background loop failed: %v", err))
	}
	logger.Info("SERVER", "stopped")
}

// metricsLoop periodically copies the engine's perf counters into the
// Prometheus registry; the engine itself never imports metrics, keeping
// the decision loop free of observability-layer dependencies.
func metricsLoop(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.Observe(eng.Snapshot())
		}
	}
}
