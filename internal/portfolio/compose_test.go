package portfolio

import (
	"reflect"
	"testing"
	"time"

	"coinfolio/internal/database"

	"github.com/rs/zerolog"
)

func TestComposeGrandTotal(t *testing.T) {
	spot := SpotValuation{
		TotalInvested:     4010,
		TotalCurrentValue: 4500,
		TotalUnrealized:   490,
	}
	manual := ManualValuation{Invested: 1000, ProfitLoss: 150, CurrentValue: 1150}
	cash := CashSummary{Deposits: 1000, Withdrawals: 300, NetCash: 700}

	snapshot := Compose("USD", spot, manual, cash, time.Unix(0, 0))

	if !almostEqual(snapshot.TotalInvested, 5010) {
		t.Errorf("Expected total invested 5010, got %f", snapshot.TotalInvested)
	}
	if !almostEqual(snapshot.TotalCurrentValue, 5650) {
		t.Errorf("Expected total current value 5650, got %f", snapshot.TotalCurrentValue)
	}
	if !almostEqual(snapshot.TotalUnrealized, 640) {
		t.Errorf("Expected total unrealized 640, got %f", snapshot.TotalUnrealized)
	}
	if !almostEqual(snapshot.GrandTotal, 6350) {
		t.Errorf("Expected grand total 6350, got %f", snapshot.GrandTotal)
	}
	if snapshot.PnLPercent == 0 {
		t.Error("Expected non-zero PnL percent")
	}
}

func TestComposeZeroInvestedPercentGuard(t *testing.T) {
	snapshot := Compose("USD", SpotValuation{}, ManualValuation{}, CashSummary{}, time.Unix(0, 0))
	if snapshot.PnLPercent != 0 {
		t.Errorf("Expected 0 percent with zero invested, got %f", snapshot.PnLPercent)
	}
}

func TestComposeIdempotent(t *testing.T) {
	spot := SpotValuation{TotalInvested: 100, TotalCurrentValue: 110, TotalUnrealized: 10, Stale: true}
	manual := ManualValuation{Invested: 50, ProfitLoss: 5, CurrentValue: 55}
	cash := CashSummary{Deposits: 10, NetCash: 10}
	now := time.Unix(1700000000, 0)

	first := Compose("USD", spot, manual, cash, now)
	second := Compose("USD", spot, manual, cash, now)

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical inputs to compose identical snapshots")
	}
}

func TestComposeWarnings(t *testing.T) {
	spot := SpotValuation{Stale: true, UnavailableAssets: []string{"XYZ"}}
	manual := ManualValuation{Flagged: 2}

	snapshot := Compose("USD", spot, manual, CashSummary{}, time.Unix(0, 0))

	if len(snapshot.Warnings) != 3 {
		t.Fatalf("Expected 3 warnings, got %d: %v", len(snapshot.Warnings), snapshot.Warnings)
	}
}

func TestSummarizeCashflows(t *testing.T) {
	cashflows := []*database.Cashflow{
		{Type: database.CashflowDeposit, Amount: 1000},
		{Type: database.CashflowWithdrawal, Amount: 300},
	}

	cs := SummarizeCashflows(cashflows)

	if !almostEqual(cs.NetCash, 700) {
		t.Errorf("Expected net cash 700, got %f", cs.NetCash)
	}
	if !almostEqual(cs.Deposits, 1000) {
		t.Errorf("Expected deposits 1000, got %f", cs.Deposits)
	}
	if !almostEqual(cs.Withdrawals, 300) {
		t.Errorf("Expected withdrawals 300, got %f", cs.Withdrawals)
	}
}

func TestAggregateManual(t *testing.T) {
	pnl := 150.0
	trades := []*database.Trade{
		{Category: database.CategoryDefi, Price: 1000, Quantity: 1, Fees: 0, ProfitLoss: &pnl},
		{Category: database.CategorySpot, Price: 40000, Quantity: 0.1}, // Ignored
	}

	mv := AggregateManual(trades, zerolog.Nop())

	if !almostEqual(mv.Invested, 1000) {
		t.Errorf("Expected manual invested 1000, got %f", mv.Invested)
	}
	if !almostEqual(mv.ProfitLoss, 150) {
		t.Errorf("Expected manual PnL 150, got %f", mv.ProfitLoss)
	}
	if !almostEqual(mv.CurrentValue, 1150) {
		t.Errorf("Expected manual current value 1150, got %f", mv.CurrentValue)
	}
}

func TestAggregateManualMissingProfitLossFlagged(t *testing.T) {
	trades := []*database.Trade{
		{Category: database.CategoryLiquidityPool, Price: 500, Quantity: 2, Fees: 10, ProfitLoss: nil},
	}

	mv := AggregateManual(trades, zerolog.Nop())

	if mv.Flagged != 1 {
		t.Errorf("Expected 1 flagged entry, got %d", mv.Flagged)
	}
	if !almostEqual(mv.ProfitLoss, 0) {
		t.Errorf("Expected missing profit_loss counted as 0, got %f", mv.ProfitLoss)
	}
	if !almostEqual(mv.Invested, 1010) {
		t.Errorf("Expected invested 1010, got %f", mv.Invested)
	}
}
