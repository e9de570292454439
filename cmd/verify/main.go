package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"quantsim/internal/config"
	"quantsim/internal/engine"
	"quantsim/internal/inputs"
	pgstore "quantsim/internal/storage/postgres"
	"quantsim/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML run configuration of the original run (required)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (order/trade logs)")
	outputJSON := flag.Bool("json", false, "Print the verification report as JSON")

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
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("a postgres DSN is required to verify stored logs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	in, err := loadRunInput(cfg)
	if err != nil {
		logger.Fatal("load inputs", zap.Error(err))
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		OrderStore: pgstore.NewOrderRecordStore(pool),
		TradeStore: pgstore.NewTradeRecordStore(pool),
	})

	report, err := verifier.VerifyRun(ctx, *in)
	if err != nil {
		logger.Fatal("verification failed", zap.Error(err))
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if !report.Clean() {
		os.Exit(1)
	}
}

// loadRunInput mirrors the simulate command's input assembly so the replay
// sees byte-identical matrices.
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

func printReport(r *verification.VerificationReport) {
	fmt.Printf("Run: %s\n", r.RunID)
	fmt.Printf("Orders: %d stored, %d matched, %d divergent\n",
		r.TotalOrders, r.MatchedOrders, r.DivergentOrders)
	fmt.Printf("Trades: %d stored, %d matched, %d divergent, %d missing, %d extra\n",
		r.TotalTrades, r.MatchedTrades, r.DivergentTrades,
		len(r.MissingTrades), len(r.ExtraTrades))

	for _, tr := range r.Trades {
		if tr.Match {
			continue
		}
		fmt.Printf("\ntrade %s:\n", tr.TradeID)
		for _, d := range tr.Divergences {
			fmt.Printf("  %-12s stored %v, replayed %v\n", d.Field, d.Expected, d.Actual)
		}
	}
	for _, id := range r.MissingTrades {
		fmt.Printf("\nmissing from replay: %s\n", id)
	}
	for _, id := range r.ExtraTrades {
		fmt.Printf("\nnot in storage: %s\n", id)
	}

	if r.Clean() {
		fmt.Println("\nOK: stored logs match the replay")
	} else {
		fmt.Println("\nFAIL: stored logs diverge from the replay")
	}
}
