package portfolio

import (
	"context"
	"errors"
	"testing"
)

// fakePriceSource serves canned prices and optionally fails the fetch.
type fakePriceSource struct {
	prices map[string]*float64
	err    error
	calls  int
}

func (f *fakePriceSource) Prices(ctx context.Context, symbols []string, currency string) (map[string]*float64, error) {
	f.calls++
	result := make(map[string]*float64, len(symbols))
	for _, sym := range symbols {
		result[sym] = f.prices[sym]
	}
	return result, f.err
}

func price(v float64) *float64 { return &v }

func TestValuateSinglePosition(t *testing.T) {
	positions := []Position{{Asset: "BTC", NetQuantity: 0.1, CostBasis: 4000, Fees: 10}}
	source := &fakePriceSource{prices: map[string]*float64{"BTC": price(45000)}}

	valuation, err := Valuate(context.Background(), positions, "USD", source)
	if err != nil {
		t.Fatalf("Valuate failed: %v", err)
	}

	if len(valuation.Assets) != 1 {
		t.Fatalf("Expected 1 asset valuation, got %d", len(valuation.Assets))
	}

	av := valuation.Assets[0]
	if !almostEqual(av.Invested, 4010) {
		t.Errorf("Expected invested 4010, got %f", av.Invested)
	}
	if !almostEqual(av.CurrentValue, 4500) {
		t.Errorf("Expected current value 4500, got %f", av.CurrentValue)
	}
	if !almostEqual(av.UnrealizedPnL, 490) {
		t.Errorf("Expected unrealized PnL 490, got %f", av.UnrealizedPnL)
	}
	// 490 / 4010 is roughly +12.2%
	if av.PnLPercent < 12.2 || av.PnLPercent > 12.3 {
		t.Errorf("Expected PnL percent around 12.2, got %f", av.PnLPercent)
	}
}

func TestValuateUnavailablePriceExcludedFromValue(t *testing.T) {
	positions := []Position{
		{Asset: "BTC", NetQuantity: 1, CostBasis: 40000, Fees: 0},
		{Asset: "OBSCURE", NetQuantity: 100, CostBasis: 1000, Fees: 0},
	}
	source := &fakePriceSource{prices: map[string]*float64{"BTC": price(45000)}}

	valuation, err := Valuate(context.Background(), positions, "USD", source)
	if err != nil {
		t.Fatalf("Valuate failed: %v", err)
	}

	// Invested counts both assets; value and PnL only the priced one.
	if !almostEqual(valuation.TotalInvested, 41000) {
		t.Errorf("Expected total invested 41000, got %f", valuation.TotalInvested)
	}
	if !almostEqual(valuation.TotalCurrentValue, 45000) {
		t.Errorf("Expected total current value 45000, got %f", valuation.TotalCurrentValue)
	}
	if !almostEqual(valuation.TotalUnrealized, 5000) {
		t.Errorf("Expected total unrealized 5000, got %f", valuation.TotalUnrealized)
	}

	if len(valuation.UnavailableAssets) != 1 || valuation.UnavailableAssets[0] != "OBSCURE" {
		t.Errorf("Expected OBSCURE marked unavailable, got %v", valuation.UnavailableAssets)
	}

	for _, av := range valuation.Assets {
		if av.Asset == "OBSCURE" {
			if !av.PriceUnavailable {
				t.Error("Expected OBSCURE to carry the unavailable marker")
			}
			if av.CurrentValue != 0 {
				t.Errorf("Expected 0 current value for unavailable asset, got %f", av.CurrentValue)
			}
			if av.CurrentPrice != nil {
				t.Error("Expected nil current price for unavailable asset")
			}
		}
	}
}

func TestValuateWholeBatchFailure(t *testing.T) {
	positions := []Position{{Asset: "BTC", NetQuantity: 1, CostBasis: 40000}}
	source := &fakePriceSource{err: errors.New("connection refused")}

	_, err := Valuate(context.Background(), positions, "USD", source)
	if err == nil {
		t.Fatal("Expected an error when the whole fetch fails with no cached prices")
	}
}

func TestValuatePartialFetchFailureMarksStale(t *testing.T) {
	// Cached quotes covered BTC before the outbound fetch for ETH failed.
	positions := []Position{
		{Asset: "BTC", NetQuantity: 1, CostBasis: 40000},
		{Asset: "ETH", NetQuantity: 10, CostBasis: 30000},
	}
	source := &fakePriceSource{
		prices: map[string]*float64{"BTC": price(45000)},
		err:    errors.New("timeout"),
	}

	valuation, err := Valuate(context.Background(), positions, "USD", source)
	if err != nil {
		t.Fatalf("Expected partial valuation, got error: %v", err)
	}
	if !valuation.Stale {
		t.Error("Expected valuation marked stale after a failed refresh")
	}
	if len(valuation.UnavailableAssets) != 1 || valuation.UnavailableAssets[0] != "ETH" {
		t.Errorf("Expected ETH unavailable, got %v", valuation.UnavailableAssets)
	}
}

func TestValuateZeroInvestedPercentGuard(t *testing.T) {
	valuation, err := Valuate(context.Background(), nil, "USD", &fakePriceSource{})
	if err != nil {
		t.Fatalf("Valuate failed: %v", err)
	}
	if valuation.PnLPercent != 0 {
		t.Errorf("Expected 0 percent on empty book, got %f", valuation.PnLPercent)
	}
}

func TestValuateEmptyPositionsSkipsFetch(t *testing.T) {
	source := &fakePriceSource{}
	if _, err := Valuate(context.Background(), nil, "USD", source); err != nil {
		t.Fatalf("Valuate failed: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("Expected no price fetch for empty positions, got %d calls", source.calls)
	}
}
