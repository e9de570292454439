package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
	"quantsim/internal/storage/memory"
)

func seedReportRun(t *testing.T, orderStore storage.OrderRecordStore, tradeStore storage.TradeRecordStore, equityStore storage.EquityPointStore) {
	t.Helper()
	ctx := context.Background()

	orders := []*domain.OrderRecord{
		{RunID: "run-1", Step: 0, Column: 0, Side: domain.SideBuy, RequestedSize: 1, FilledSize: 1, Price: 50, FillPrice: 50, Fees: 0.1, Status: domain.OrderFilled},
		{RunID: "run-1", Step: 2, Column: 0, Side: domain.SideSell, RequestedSize: 1, FilledSize: 1, Price: 60, FillPrice: 60, Fees: 0.1, Status: domain.OrderFilled},
		{RunID: "run-1", Step: 1, Column: 1, Side: domain.SideBuy, RequestedSize: 5, FilledSize: 0, Price: 50, Status: domain.OrderRejected, Reason: domain.ReasonInsufficientCash},
	}
	if err := orderStore.InsertBulk(ctx, orders); err != nil {
		t.Fatalf("seed orders: %v", err)
	}

	trades := []*domain.TradeRecord{
		{TradeID: "tr-1", RunID: "run-1", Column: 0, Direction: domain.TradeLong, Size: 1,
			EntryStep: 0, EntryPrice: 50, ExitStep: 2, ExitPrice: 60,
			PnL: 9.8, Return: 0.196, Status: domain.TradeClosed, ExitReason: domain.ExitReasonClose},
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("seed trades: %v", err)
	}

	equity := []*domain.EquityPoint{
		{RunID: "run-1", Step: 0, Column: 0, Price: 50, Cash: 49.9, Position: 1, Value: 99.9},
		{RunID: "run-1", Step: 2, Column: 0, Price: 60, Cash: 109.8, Position: 0, Value: 109.8},
	}
	if err := equityStore.InsertBulk(ctx, equity); err != nil {
		t.Fatalf("seed equity: %v", err)
	}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()

	orderStore := memory.NewOrderRecordStore()
	tradeStore := memory.NewTradeRecordStore()
	equityStore := memory.NewEquityPointStore()
	aggStore := memory.NewRunAggregateStore()

	seedReportRun(t, orderStore, tradeStore, equityStore)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewGenerator(orderStore, tradeStore, equityStore, aggStore).
		WithClock(func() time.Time { return fixed })
}

func TestGenerator_Generate(t *testing.T) {
	gen := newTestGenerator(t)

	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", report.RunID)
	}
	if report.Aggregate == nil {
		t.Fatal("expected computed aggregate")
	}
	if report.Aggregate.TotalOrders != 3 {
		t.Errorf("expected 3 orders, got %d", report.Aggregate.TotalOrders)
	}
	if report.Aggregate.Wins != 1 {
		t.Errorf("expected 1 win, got %d", report.Aggregate.Wins)
	}

	if len(report.ColumnSummaries) != 2 {
		t.Fatalf("expected 2 column summaries, got %d", len(report.ColumnSummaries))
	}
	col0 := report.ColumnSummaries[0]
	if col0.Orders != 2 || col0.Filled != 2 {
		t.Errorf("column 0: expected 2 orders filled, got %d/%d", col0.Orders, col0.Filled)
	}
	if col0.FinalValue != 109.8 {
		t.Errorf("column 0: expected final value 109.8, got %f", col0.FinalValue)
	}
	col1 := report.ColumnSummaries[1]
	if col1.Rejected != 1 {
		t.Errorf("column 1: expected 1 rejected, got %d", col1.Rejected)
	}

	if len(report.Trades) != 1 || report.Trades[0].TradeID != "tr-1" {
		t.Errorf("unexpected trade rows: %+v", report.Trades)
	}
}

func TestGenerator_UnknownRun(t *testing.T) {
	gen := newTestGenerator(t)

	_, err := gen.Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown_ContainsSections(t *testing.T) {
	gen := newTestGenerator(t)

	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Simulation Run Report",
		"## Run Summary",
		"## Columns",
		"## Trades",
		"run-1",
		"LONG",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderTradesCSV(t *testing.T) {
	trades := []*domain.TradeRecord{
		{TradeID: "tr-1", RunID: "run-1", Column: 0, Direction: domain.TradeLong, Size: 1,
			EntryStep: 0, EntryPrice: 50, ExitStep: 2, ExitPrice: 60,
			PnL: 9.8, Return: 0.196, Status: domain.TradeClosed, ExitReason: domain.ExitReasonClose},
	}

	csv := RenderTradesCSV(trades)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "trade_id,run_id,column") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "tr-1") || !strings.Contains(lines[1], "LONG") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestRenderOrdersCSV_Empty(t *testing.T) {
	csv := RenderOrdersCSV(nil)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 1 {
		t.Errorf("expected header only, got %d lines", len(lines))
	}
}
