package verification

import (
	"context"
	"errors"
	"fmt"

	"quantsim/internal/domain"
	"quantsim/internal/engine"
	"quantsim/internal/storage"
)

// ErrRunNotFound is returned when no logs exist for the replayed run id.
var ErrRunNotFound = errors.New("run not found in storage")

// ReplayVerifier re-executes a simulation from its original inputs and
// compares the kernel output against the persisted logs.
type ReplayVerifier struct {
	orderStore storage.OrderRecordStore
	tradeStore storage.TradeRecordStore
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	OrderStore storage.OrderRecordStore
	TradeStore storage.TradeRecordStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		orderStore: opts.OrderStore,
		tradeStore: opts.TradeStore,
	}
}

// VerifyRun replays the given input and checks every stored order and trade
// record of the resulting run id against the replayed logs. The input must be
// the exact input of the original run; a different input derives a different
// run id and fails with ErrRunNotFound.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, in engine.RunInput) (*VerificationReport, error) {
	res, err := engine.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("replay simulation: %w", err)
	}

	storedOrders, err := v.orderStore.GetByRunID(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("load stored order log: %w", err)
	}
	if len(storedOrders) == 0 {
		return nil, fmt.Errorf("run %s: %w", res.RunID, ErrRunNotFound)
	}

	storedTrades, err := v.tradeStore.GetByRunID(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("load stored trade log: %w", err)
	}

	report := &VerificationReport{RunID: res.RunID}
	v.verifyOrders(report, storedOrders, res.Orders)
	v.verifyTrades(report, storedTrades, res.Trades)
	return report, nil
}

func (v *ReplayVerifier) verifyOrders(report *VerificationReport, stored []*domain.OrderRecord, replayed []domain.OrderRecord) {
	type orderKey struct {
		step, column, attempt int
	}
	byKey := make(map[orderKey]*domain.OrderRecord, len(replayed))
	for i := range replayed {
		r := &replayed[i]
		byKey[orderKey{r.Step, r.Column, r.Attempt}] = r
	}

	report.TotalOrders = len(stored)
	for _, s := range stored {
		r, ok := byKey[orderKey{s.Step, s.Column, s.Attempt}]
		if !ok || len(CompareOrderRecords(s, r)) > 0 {
			report.DivergentOrders++
			continue
		}
		report.MatchedOrders++
	}
}

func (v *ReplayVerifier) verifyTrades(report *VerificationReport, stored []*domain.TradeRecord, replayed []domain.TradeRecord) {
	byID := make(map[string]*domain.TradeRecord, len(replayed))
	for i := range replayed {
		byID[replayed[i].TradeID] = &replayed[i]
	}

	report.TotalTrades = len(stored)
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		seen[s.TradeID] = true
		r, ok := byID[s.TradeID]
		if !ok {
			report.MissingTrades = append(report.MissingTrades, s.TradeID)
			continue
		}
		divergences := CompareTradeRecords(s, r)
		result := TradeVerification{
			TradeID:     s.TradeID,
			Match:       len(divergences) == 0,
			Divergences: divergences,
		}
		if result.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
		report.Trades = append(report.Trades, result)
	}

	for i := range replayed {
		if !seen[replayed[i].TradeID] {
			report.ExtraTrades = append(report.ExtraTrades, replayed[i].TradeID)
		}
	}
}
