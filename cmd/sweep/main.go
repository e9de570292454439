package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"quantsim/internal/domain"
	"quantsim/internal/engine"
	"quantsim/internal/inputs"
	"quantsim/internal/orchestrator"
	"quantsim/internal/reporting"
	"quantsim/internal/storage/memory"
)

// comboParams is the cost model assigned to one sweep column.
type comboParams struct {
	FeeRate  float64
	Slippage float64
}

func main() {
	pricesPath := flag.String("prices", "", "Single-column price series CSV (required)")
	feeRates := flag.String("fee-rates", "0", "Comma-separated fee rates to sweep")
	slippages := flag.String("slippages", "0", "Comma-separated slippage fractions to sweep")
	initialCash := flag.Float64("cash", 100, "Initial cash per combination")
	signalSize := flag.Float64("size", 1, "Entry size as a fraction of account value")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
	outputJSON := flag.Bool("json", false, "Print the full report as JSON")
	verbose := flag.Bool("v", false, "Verbose run logging")

	flag.Parse()

	if *pricesPath == "" {
		fmt.Fprintln(os.Stderr, "--prices is required")
		os.Exit(1)
	}

	fees, err := parseFloats(*feeRates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse --fee-rates: %v\n", err)
		os.Exit(1)
	}
	slips, err := parseFloats(*slippages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse --slippages: %v\n", err)
		os.Exit(1)
	}

	series, err := inputs.LoadMatrixCSV(*pricesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load prices: %v\n", err)
		os.Exit(1)
	}
	if series.Columns() != 1 {
		fmt.Fprintf(os.Stderr, "price series must have exactly one column, got %d\n", series.Columns())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	combos := expandGrid(fees, slips)
	in, err := buildRunInput(series, combos, *initialCash, *signalSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build sweep input: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewProduction()
		if err != nil {
			fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	orderStore := memory.NewOrderRecordStore()
	tradeStore := memory.NewTradeRecordStore()
	equityStore := memory.NewEquityPointStore()
	aggStore := memory.NewRunAggregateStore()

	orch := orchestrator.New(orchestrator.Options{
		OrderStore:  orderStore,
		TradeStore:  tradeStore,
		EquityStore: equityStore,
		AggStore:    aggStore,
		Workers:     *workers,
		Logger:      logger,
	})

	result, err := orch.Run(ctx, *in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep run failed: %v\n", err)
		os.Exit(1)
	}

	gen := reporting.NewGenerator(orderStore, tradeStore, equityStore, aggStore)
	report, err := gen.Generate(ctx, result.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build report: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return
	}

	printGrid(result.RunID, combos, report.ColumnSummaries)
}

func parseFloats(list string) ([]float64, error) {
	parts := strings.Split(list, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// expandGrid builds the full cross product, fee rate as the outer axis.
func expandGrid(fees, slips []float64) []comboParams {
	combos := make([]comboParams, 0, len(fees)*len(slips))
	for _, f := range fees {
		for _, s := range slips {
			combos = append(combos, comboParams{FeeRate: f, Slippage: s})
		}
	}
	return combos
}

// buildRunInput replicates the price series across one column per combination
// and runs every combination as an independent long-only account. Entry at the
// first step, exit at the last, so each column realizes exactly one round trip.
func buildRunInput(series *inputs.Matrix, combos []comboParams, cash, size float64) (*engine.RunInput, error) {
	steps := series.Steps()
	columns := len(combos)

	priceRows := make([][]float64, steps)
	entryRows := make([][]bool, steps)
	exitRows := make([][]bool, steps)
	for s := 0; s < steps; s++ {
		priceRows[s] = make([]float64, columns)
		entryRows[s] = make([]bool, columns)
		exitRows[s] = make([]bool, columns)
		for c := 0; c < columns; c++ {
			priceRows[s][c] = series.At(s, 0)
			entryRows[s][c] = s == 0
			exitRows[s][c] = s == steps-1
		}
	}

	cfg := domain.DefaultSimConfig()
	cfg.InitialCash = cash
	cfg.SignalSize = size
	cfg.FeeRateByColumn = make([]float64, columns)
	cfg.SlippageByColumn = make([]float64, columns)
	for i, combo := range combos {
		cfg.FeeRateByColumn[i] = combo.FeeRate
		cfg.SlippageByColumn[i] = combo.Slippage
	}

	prices, err := inputs.FromRows(priceRows)
	if err != nil {
		return nil, err
	}
	entries, err := inputs.BoolFromRows(entryRows)
	if err != nil {
		return nil, err
	}
	exits, err := inputs.BoolFromRows(exitRows)
	if err != nil {
		return nil, err
	}

	return &engine.RunInput{
		Config:      cfg,
		Prices:      prices,
		Entries:     entries,
		Exits:       exits,
		TrackEquity: true,
	}, nil
}

func printGrid(runID string, combos []comboParams, rows []reporting.ColumnSummaryRow) {
	fmt.Printf("Run: %s (%d combinations)\n\n", runID, len(combos))
	fmt.Printf("%-4s %-10s %-10s %-7s %-7s %-7s %-12s %-12s %-12s\n",
		"col", "fee_rate", "slippage", "orders", "filled", "trades", "pnl", "fees", "final_value")
	for _, row := range rows {
		combo := combos[row.Column]
		fmt.Printf("%-4d %-10g %-10g %-7d %-7d %-7d %-12.6f %-12.6f %-12.6f\n",
			row.Column, combo.FeeRate, combo.Slippage,
			row.Orders, row.Filled, row.Trades,
			row.ClosedPnL, row.FeesPaid, row.FinalValue)
	}
}
