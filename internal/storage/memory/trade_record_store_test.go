package memory

import (
	"context"
	"errors"
	"testing"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:    "t1",
		RunID:      "r1",
		Column:     0,
		Direction:  domain.TradeLong,
		Size:       2.0,
		EntryStep:  1,
		EntryPrice: 50.0,
		ExitStep:   3,
		ExitPrice:  60.0,
		PnL:        20.0,
		Status:     domain.TradeClosed,
		ExitReason: domain.ExitReasonClose,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PnL != 20.0 {
		t.Errorf("Expected PnL 20.0, got %f", got.PnL)
	}
	if got.Direction != domain.TradeLong {
		t.Errorf("Expected LONG, got %s", got.Direction)
	}
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "t1", RunID: "r1"}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_InvalidInput(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	err := store.Insert(ctx, &domain.TradeRecord{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty trade_id, got %v", err)
	}
}

func TestTradeRecordStore_GetByRunIDOrdering(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t3", RunID: "r1", Column: 1, EntryStep: 2},
		{TradeID: "t1", RunID: "r1", Column: 0, EntryStep: 0},
		{TradeID: "t2", RunID: "r1", Column: 1, EntryStep: 0},
	}

	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(result))
	}
	if result[0].TradeID != "t1" || result[1].TradeID != "t2" || result[2].TradeID != "t3" {
		t.Errorf("Unexpected ordering: %s, %s, %s", result[0].TradeID, result[1].TradeID, result[2].TradeID)
	}
}

func TestTradeRecordStore_ReturnsCopy(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "t1", RunID: "r1", PnL: 5.0}
	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the inserted struct must not affect the stored copy
	trade.PnL = 999.0

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PnL != 5.0 {
		t.Errorf("Expected stored PnL 5.0, got %f", got.PnL)
	}
}
