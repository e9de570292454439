package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"quantsim/internal/config"
	"quantsim/internal/engine"
	"quantsim/internal/inputs"
	"quantsim/internal/observability"
	"quantsim/internal/orchestrator"
	"quantsim/internal/reporting"
	"quantsim/internal/storage"
	chstore "quantsim/internal/storage/clickhouse"
	"quantsim/internal/storage/memory"
	"quantsim/internal/storage/migrations"
	pgstore "quantsim/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML run configuration (required)")

	// Input overrides
	pricesPath := flag.String("prices", "", "Override prices CSV path")
	sizesPath := flag.String("sizes", "", "Override sizes CSV path")
	entriesPath := flag.String("entries", "", "Override entry signals CSV path")
	exitsPath := flag.String("exits", "", "Override exit signals CSV path")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (order/trade logs)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (equity/aggregates)")

	// Execution
	workers := flag.Int("workers", 0, "Worker goroutines for group parallelism (0 = GOMAXPROCS)")
	trackEquity := flag.Bool("track-equity", false, "Record per-step equity snapshots")

	// Output
	outputJSON := flag.Bool("json", false, "Print run result as JSON")
	tradesCSV := flag.String("trades-csv", "", "Write trade log CSV to this path")
	ordersCSV := flag.String("orders-csv", "", "Write order log CSV to this path")

	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		logger.Fatal("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	applyOverrides(cfg, *pricesPath, *sizesPath, *entriesPath, *exitsPath)
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *workers != 0 {
		cfg.Run.Workers = *workers
	}
	if *trackEquity {
		cfg.Run.TrackEquity = true
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	in, err := loadRunInput(cfg)
	if err != nil {
		logger.Fatal("load inputs", zap.Error(err))
	}

	stores, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("set up storage", zap.Error(err))
	}
	defer cleanup()

	orch := orchestrator.New(orchestrator.Options{
		OrderStore:  stores.orders,
		TradeStore:  stores.trades,
		EquityStore: stores.equity,
		AggStore:    stores.aggs,
		Workers:     cfg.Run.Workers,
		Logger:      logger,
	})

	result, err := orch.Run(ctx, *in)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	if *tradesCSV != "" {
		trades, err := stores.trades.GetByRunID(ctx, result.RunID)
		if err != nil {
			logger.Fatal("load trade log", zap.Error(err))
		}
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(trades)), 0o644); err != nil {
			logger.Fatal("write trades csv", zap.Error(err))
		}
	}
	if *ordersCSV != "" {
		orders, err := stores.orders.GetByRunID(ctx, result.RunID)
		if err != nil {
			logger.Fatal("load order log", zap.Error(err))
		}
		if err := os.WriteFile(*ordersCSV, []byte(reporting.RenderOrdersCSV(orders)), 0o644); err != nil {
			logger.Fatal("write orders csv", zap.Error(err))
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	printSummary(result)
}

func applyOverrides(cfg *config.Config, prices, sizes, entries, exits string) {
	if prices != "" {
		cfg.Inputs.Prices = prices
	}
	if sizes != "" {
		cfg.Inputs.Sizes = sizes
		cfg.Inputs.Entries = ""
		cfg.Inputs.Exits = ""
	}
	if entries != "" {
		cfg.Inputs.Entries = entries
		cfg.Inputs.Sizes = ""
	}
	if exits != "" {
		cfg.Inputs.Exits = exits
		cfg.Inputs.Sizes = ""
	}
}

// loadRunInput reads the configured CSV matrices and assembles the kernel input.
func loadRunInput(cfg *config.Config) (*engine.RunInput, error) {
	prices, err := inputs.LoadMatrixCSV(cfg.Inputs.Prices)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	in := &engine.RunInput{
		Config:      cfg.ToSimConfig(),
		Prices:      prices,
		TrackEquity: cfg.Run.TrackEquity,
		RunID:       cfg.Run.RunID,
	}

	if cfg.Inputs.Sizes != "" {
		sizes, err := inputs.LoadMatrixCSV(cfg.Inputs.Sizes)
		if err != nil {
			return nil, fmt.Errorf("load sizes: %w", err)
		}
		in.Sizes = sizes
		return in, nil
	}

	entries, err := inputs.LoadBoolMatrixCSV(cfg.Inputs.Entries)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	exits, err := inputs.LoadBoolMatrixCSV(cfg.Inputs.Exits)
	if err != nil {
		return nil, fmt.Errorf("load exits: %w", err)
	}
	in.Entries = entries
	in.Exits = exits
	return in, nil
}

type runStores struct {
	orders storage.OrderRecordStore
	trades storage.TradeRecordStore
	equity storage.EquityPointStore
	aggs   storage.RunAggregateStore
}

// buildStores wires memory stores by default, or the configured backends.
// Migrations run automatically against configured backends.
func buildStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runStores, func(), error) {
	stores := &runStores{
		orders: memory.NewOrderRecordStore(),
		trades: memory.NewTradeRecordStore(),
		equity: memory.NewEquityPointStore(),
		aggs:   memory.NewRunAggregateStore(),
	}
	cleanup := func() {}

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.orders = pgstore.NewOrderRecordStore(pool)
		stores.trades = pgstore.NewTradeRecordStore(pool)
		prev := cleanup
		cleanup = func() { pool.Close(); prev() }
		logger.Info("using postgres for order/trade logs")
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.equity = chstore.NewEquityPointStore(conn)
		stores.aggs = chstore.NewRunAggregateStore(conn)
		prev := cleanup
		cleanup = func() { conn.Close(); prev() }
		logger.Info("using clickhouse for equity/aggregates")
	}

	return stores, cleanup, nil
}

func printSummary(r *orchestrator.RunResult) {
	fmt.Printf("Run:           %s\n", r.RunID)
	fmt.Printf("Orders:        %d\n", r.Orders)
	fmt.Printf("Trades:        %d\n", r.Trades)
	fmt.Printf("Equity points: %d\n", r.EquityPoints)

	a := r.Aggregate
	fmt.Printf("Filled: %d  Partial: %d  Rejected: %d  No-ops: %d\n",
		a.FilledOrders, a.PartialOrders, a.Rejected, a.NoOps)
	fmt.Printf("Win rate: %.4f  Total PnL: %.6f  Fees: %.6f\n",
		a.WinRate, a.TotalPnL, a.TotalFees)
	if r.EquityPoints > 0 {
		fmt.Printf("Final value: %.6f  Max drawdown: %.4f\n", a.FinalValue, a.MaxDrawdown)
	}

	fmt.Println("\nFinal accounts:")
	for _, acc := range r.Accounts {
		fmt.Printf("  col %d: cash=%.6f position=%.6f realized=%.6f fees=%.6f\n",
			acc.Column, acc.Cash, acc.Position, acc.RealizedPnL, acc.FeesPaid)
	}
}
