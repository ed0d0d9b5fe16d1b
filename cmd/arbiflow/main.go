package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisadapter "arbiflow/internal/adapters/cache/redis"
	"arbiflow/internal/adapters/exchange/gate"
	"arbiflow/internal/adapters/exchange/paper"
	"arbiflow/internal/adapters/storage/postgresql"
	"arbiflow/internal/adapters/web"
	"arbiflow/internal/application/ports"
	"arbiflow/internal/application/usecases"
	"arbiflow/internal/arbitrage"
	"arbiflow/internal/config"
	"arbiflow/internal/logger"
	"arbiflow/internal/marketdata"
)

func main() {
	var (
		port     = flag.Int("port", 0, "HTTP server port (overrides config)")
		mode     = flag.String("mode", "live", "connector mode: live or paper")
		showHelp = flag.Bool("help", false, "show usage")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting arbiflow", "mode", *mode, "port", cfg.Server.Port)

	if err := run(cfg, *mode, log); err != nil {
		log.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode string, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional external infrastructure. The process stays up without either:
	// the in-memory cache is authoritative and the journal is best-effort.
	var mirror ports.TickMirror
	if cfg.Cache.Host != "" {
		m, err := redisadapter.New(cfg.Cache)
		if err != nil {
			log.Warn("Tick mirror unavailable, continuing without it", "error", err)
		} else {
			mirror = m
			defer mirror.Close()
			log.Info("Tick mirror connected", "host", cfg.Cache.Host)
		}
	}

	var journal ports.OrderJournal
	if cfg.Database.Host != "" {
		j, err := postgresql.New(cfg.Database)
		if err != nil {
			log.Warn("Order journal unavailable, continuing without it", "error", err)
		} else {
			journal = j
			defer journal.Close()
			log.Info("Order journal connected", "host", cfg.Database.Host)
		}
	}

	cache := marketdata.NewCache()
	manager := marketdata.NewManager(cache, cfg.Ingest.PollInterval, log)

	connectors, err := buildConnectors(cfg, mode, log)
	if err != nil {
		return err
	}
	for _, conn := range connectors {
		if err := manager.Register(conn); err != nil {
			return fmt.Errorf("register %s: %w", conn.Name(), err)
		}
	}

	// Async fan-out subscribers keep the ingestion goroutines free of I/O.
	if mirror != nil {
		writer := usecases.NewMirrorWriter(mirror, cfg.Ingest.StreamBufferSize, log)
		writer.Start(ctx)
		defer writer.Stop()
		manager.OnTickerUpdate(writer.Callback())
	}
	if journal != nil {
		writer := usecases.NewJournalWriter(journal, cfg.Ingest.StreamBufferSize, log)
		writer.Start(ctx)
		defer writer.Stop()
		manager.OnOrderUpdate(writer.Callback())
	}
	manager.OnError(func(scope, message string) {
		log.Warn("Connector error", "scope", scope, "message", message)
	})

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start ingestion: %w", err)
	}
	defer manager.Stop()

	detector := arbitrage.NewDetector(cache, arbitrage.Config{
		MinProfitBps: cfg.Arbitrage.MinProfitBps,
		MaxTickAge:   cfg.Arbitrage.MaxTickAge,
	}, connectorLatency(manager), log)

	scanCtx, scanCancel := context.WithCancel(ctx)
	defer scanCancel()
	go scanLoop(scanCtx, detector, cfg.Arbitrage.ScanInterval, log)

	marketDataUseCase := usecases.NewMarketDataUseCase(manager, mirror, log)
	server := web.NewServer(cfg.Server.Port, marketDataUseCase, detector, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("Shutdown complete")
	return nil
}

// buildConnectors assembles the venue set for the requested mode. Paper mode
// runs two simulated venues so cross-venue detection has something to find.
func buildConnectors(cfg *config.Config, mode string, log *slog.Logger) ([]ports.ExchangeConnector, error) {
	switch mode {
	case "paper":
		symbols := defaultSymbols(cfg)
		var out []ports.ExchangeConnector
		for _, name := range []string{"paper-a", "paper-b"} {
			conn := paper.New(name, paper.Config{
				FeeRate:         0.001,
				InitialBalances: map[string]float64{"USDT": 1000000, "BTC": 10, "ETH": 100},
			}, log)
			if err := conn.SubscribeTickers(symbols...); err != nil {
				return nil, fmt.Errorf("subscribe %s: %w", name, err)
			}
			out = append(out, conn)
		}
		return out, nil

	case "live":
		if len(cfg.Exchanges) == 0 {
			return nil, fmt.Errorf("no exchanges configured")
		}
		var out []ports.ExchangeConnector
		for name, exCfg := range cfg.Exchanges {
			conn, err := gate.New(name, gate.Config{
				APIKey:           exCfg.APIKey,
				APISecret:        exCfg.APISecret,
				RESTURL:          exCfg.RESTURL,
				WSURL:            exCfg.WSURL,
				UseTestnet:       exCfg.UseTestnet,
				TestnetRESTURL:   exCfg.TestnetRESTURL,
				TestnetWSURL:     exCfg.TestnetWSURL,
				RateLimit:        exCfg.RateLimit,
				RateLimitWindow:  exCfg.RateLimitWindow,
				StreamBufferSize: cfg.Ingest.StreamBufferSize,
			}, log)
			if err != nil {
				return nil, fmt.Errorf("build connector %s: %w", name, err)
			}
			if err := conn.SubscribeTickers(exCfg.Symbols...); err != nil {
				return nil, fmt.Errorf("subscribe %s: %w", name, err)
			}
			out = append(out, conn)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// connectorLatency adapts per-connector latency instrumentation for the detector
func connectorLatency(manager *marketdata.Manager) func(string) float64 {
	return func(exchange string) float64 {
		conn, ok := manager.Connector(exchange)
		if !ok {
			return 0
		}
		return conn.LatencyMs()
	}
}

// scanLoop periodically logs detected opportunities. The HTTP surface runs
// its own scans on demand; this loop exists so edges show up in the logs
// even with no dashboard attached.
func scanLoop(ctx context.Context, detector *arbitrage.Detector, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, opp := range detector.Scan("") {
				log.Info("Arbitrage opportunity",
					"symbol", opp.Symbol,
					"buy", opp.BuyExchange,
					"sell", opp.SellExchange,
					"profit_bps", opp.ProfitBps,
					"max_qty", opp.MaxQuantity,
					"executable", opp.Executable,
					"risk", opp.Risk,
				)
			}
		}
	}
}

// defaultSymbols collects the symbols of all configured exchanges, falling
// back to a small built-in set.
func defaultSymbols(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, exCfg := range cfg.Exchanges {
		for _, symbol := range exCfg.Symbols {
			if !seen[symbol] {
				seen[symbol] = true
				out = append(out, symbol)
			}
		}
	}
	if len(out) == 0 {
		out = []string{"BTCUSDT", "ETHUSDT"}
	}
	return out
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  arbiflow [--port <N>] [--mode live|paper]")
	fmt.Println("  arbiflow --help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --port N       Port number for the HTTP API (overrides config)")
	fmt.Println("  --mode MODE    live: venue connectors from config; paper: simulated venues")
	fmt.Println("  --help         Show this help message")
}
