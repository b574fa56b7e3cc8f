package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinfolio/internal/database"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	trades    []*database.Trade
	cashflows []*database.Cashflow
	tradesErr error
}

func (f *fakeStore) ListTradesForUser(ctx context.Context, userID string, category database.TradeCategory) ([]*database.Trade, error) {
	return f.trades, f.tradesErr
}

func (f *fakeStore) ListCashflowsForUser(ctx context.Context, userID string) ([]*database.Cashflow, error) {
	return f.cashflows, nil
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestComputeSnapshotEndToEnd(t *testing.T) {
	pnl := 150.0
	store := &fakeStore{
		trades: []*database.Trade{
			spotTrade("BTC", "buy", 40000, 0.1, 10),
			{Category: database.CategoryDefi, Asset: "USDT", Price: 1000, Quantity: 1, ProfitLoss: &pnl},
		},
		cashflows: []*database.Cashflow{
			{Type: database.CashflowDeposit, Amount: 1000},
			{Type: database.CashflowWithdrawal, Amount: 300},
		},
	}
	prices := &fakePriceSource{prices: map[string]*float64{"BTC": price(45000)}}

	svc := NewService(store, prices, fixedClock(1700000000), zerolog.Nop())

	snapshot, err := svc.ComputeSnapshot(context.Background(), "user-1", "USD")
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	// Spot 4010 invested + manual 1000
	if !almostEqual(snapshot.TotalInvested, 5010) {
		t.Errorf("Expected total invested 5010, got %f", snapshot.TotalInvested)
	}
	// Spot 4500 value + manual 1150
	if !almostEqual(snapshot.TotalCurrentValue, 5650) {
		t.Errorf("Expected total current value 5650, got %f", snapshot.TotalCurrentValue)
	}
	if !almostEqual(snapshot.NetCash, 700) {
		t.Errorf("Expected net cash 700, got %f", snapshot.NetCash)
	}
	if !almostEqual(snapshot.GrandTotal, 6350) {
		t.Errorf("Expected grand total 6350, got %f", snapshot.GrandTotal)
	}

	committed, ok := svc.LastSnapshot("user-1")
	if !ok {
		t.Fatal("Expected last snapshot to be committed")
	}
	if !almostEqual(committed.GrandTotal, snapshot.GrandTotal) {
		t.Error("Expected committed snapshot to match returned snapshot")
	}
}

func TestComputeSnapshotPriceServiceDown(t *testing.T) {
	pnl := 150.0
	store := &fakeStore{
		trades: []*database.Trade{
			spotTrade("BTC", "buy", 40000, 0.1, 10),
			{Category: database.CategoryDefi, Asset: "USDT", Price: 1000, Quantity: 1, ProfitLoss: &pnl},
		},
		cashflows: []*database.Cashflow{{Type: database.CashflowDeposit, Amount: 500}},
	}
	prices := &fakePriceSource{err: errors.New("connection refused")}

	svc := NewService(store, prices, fixedClock(1700000000), zerolog.Nop())

	snapshot, err := svc.ComputeSnapshot(context.Background(), "user-1", "USD")
	if !errors.Is(err, ErrSpotUnavailable) {
		t.Fatalf("Expected ErrSpotUnavailable, got %v", err)
	}

	// Manual and cash slices still compute; no zero-value spot book is
	// fabricated in their place.
	if !almostEqual(snapshot.Manual.CurrentValue, 1150) {
		t.Errorf("Expected manual current value 1150, got %f", snapshot.Manual.CurrentValue)
	}
	if !almostEqual(snapshot.NetCash, 500) {
		t.Errorf("Expected net cash 500, got %f", snapshot.NetCash)
	}
	if len(snapshot.Warnings) == 0 {
		t.Error("Expected a warning about the unavailable spot valuation")
	}

	// A failed pass never becomes the last-known-good snapshot.
	if _, ok := svc.LastSnapshot("user-1"); ok {
		t.Error("Expected no committed snapshot after a failed pass")
	}
}

func TestComputeSnapshotStoreError(t *testing.T) {
	store := &fakeStore{tradesErr: errors.New("db down")}
	svc := NewService(store, &fakePriceSource{}, nil, zerolog.Nop())

	if _, err := svc.ComputeSnapshot(context.Background(), "user-1", "USD"); err == nil {
		t.Fatal("Expected error when the trade load fails")
	}
}

func TestSupersededPassDoesNotCommit(t *testing.T) {
	store := &fakeStore{trades: []*database.Trade{spotTrade("BTC", "buy", 100, 1, 0)}}
	prices := &fakePriceSource{prices: map[string]*float64{"BTC": price(200)}}
	svc := NewService(store, prices, fixedClock(1), zerolog.Nop())

	// Simulate an old pass finishing after a newer one started.
	oldGen := svc.begin("user-1")
	newGen := svc.begin("user-1")

	old := Compose("USD", SpotValuation{TotalCurrentValue: 1}, ManualValuation{}, CashSummary{}, time.Unix(1, 0))
	fresh := Compose("USD", SpotValuation{TotalCurrentValue: 2}, ManualValuation{}, CashSummary{}, time.Unix(2, 0))

	svc.commit("user-1", newGen, fresh)
	svc.commit("user-1", oldGen, old)

	committed, ok := svc.LastSnapshot("user-1")
	if !ok {
		t.Fatal("Expected a committed snapshot")
	}
	if !almostEqual(committed.TotalCurrentValue, 2) {
		t.Errorf("Expected the fresher snapshot to win, got value %f", committed.TotalCurrentValue)
	}
}
