package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quantsim/internal/reporting"
	"quantsim/internal/storage"
	chstore "quantsim/internal/storage/clickhouse"
	"quantsim/internal/storage/memory"
	pgstore "quantsim/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run id to report on (required)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (order/trade logs, required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (equity/aggregates)")
	format := flag.String("format", "markdown", "Output format: markdown, orders-csv, trades-csv, equity-csv")
	outPath := flag.String("o", "", "Write output to this path instead of stdout")

	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "--run-id is required")
		os.Exit(1)
	}
	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "--postgres-dsn is required")
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

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	orderStore := pgstore.NewOrderRecordStore(pool)
	tradeStore := pgstore.NewTradeRecordStore(pool)

	// Equity and aggregates are optional. Without ClickHouse the report
	// recomputes the aggregate from the order and trade logs.
	var equityStore storage.EquityPointStore = memory.NewEquityPointStore()
	var aggStore storage.RunAggregateStore = memory.NewRunAggregateStore()
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect to clickhouse: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		equityStore = chstore.NewEquityPointStore(conn)
		aggStore = chstore.NewRunAggregateStore(conn)
	}

	output, err := render(ctx, *format, *runID, orderStore, tradeStore, equityStore, aggStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build report: %v\n", err)
		os.Exit(1)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(output), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(output)
}

func render(
	ctx context.Context,
	format, runID string,
	orderStore storage.OrderRecordStore,
	tradeStore storage.TradeRecordStore,
	equityStore storage.EquityPointStore,
	aggStore storage.RunAggregateStore,
) (string, error) {
	switch format {
	case "markdown":
		gen := reporting.NewGenerator(orderStore, tradeStore, equityStore, aggStore)
		report, err := gen.Generate(ctx, runID)
		if err != nil {
			return "", err
		}
		return reporting.RenderMarkdown(report), nil
	case "orders-csv":
		orders, err := orderStore.GetByRunID(ctx, runID)
		if err != nil {
			return "", err
		}
		return reporting.RenderOrdersCSV(orders), nil
	case "trades-csv":
		trades, err := tradeStore.GetByRunID(ctx, runID)
		if err != nil {
			return "", err
		}
		return reporting.RenderTradesCSV(trades), nil
	case "equity-csv":
		points, err := equityStore.GetByRunID(ctx, runID)
		if err != nil {
			return "", err
		}
		return reporting.RenderEquityCSV(points), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}
