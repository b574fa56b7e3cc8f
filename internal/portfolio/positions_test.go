package portfolio

import (
	"math"
	"testing"
	"time"

	"coinfolio/internal/database"
)

func spotTrade(asset string, side string, price, qty, fees float64) *database.Trade {
	trade := &database.Trade{
		Category:     database.CategorySpot,
		Asset:        asset,
		Price:        price,
		Quantity:     qty,
		Fees:         fees,
		Currency:     database.CurrencyUSD,
		TransactedAt: time.Now(),
	}
	if side != "" {
		trade.Details = map[string]interface{}{"side": side}
	}
	return trade
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregatePositionsSingleBuy(t *testing.T) {
	positions := AggregatePositions([]*database.Trade{
		spotTrade("BTC", "buy", 40000, 0.1, 10),
	})

	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}

	pos := positions[0]
	if pos.Asset != "BTC" {
		t.Errorf("Expected asset BTC, got %s", pos.Asset)
	}
	if !almostEqual(pos.NetQuantity, 0.1) {
		t.Errorf("Expected net quantity 0.1, got %f", pos.NetQuantity)
	}
	if !almostEqual(pos.CostBasis, 4000) {
		t.Errorf("Expected cost basis 4000, got %f", pos.CostBasis)
	}
	if !almostEqual(pos.Invested(), 4010) {
		t.Errorf("Expected invested 4010, got %f", pos.Invested())
	}
	if !almostEqual(pos.AverageCost(), 40000) {
		t.Errorf("Expected average cost 40000, got %f", pos.AverageCost())
	}
}

func TestAggregatePositionsNetZeroDropped(t *testing.T) {
	positions := AggregatePositions([]*database.Trade{
		spotTrade("BTC", "buy", 40000, 0.1, 0),
		spotTrade("BTC", "sell", 50000, 0.1, 0),
	})

	if len(positions) != 0 {
		t.Fatalf("Expected fully closed asset to be excluded, got %d positions", len(positions))
	}
}

func TestAggregatePositionsAllSellsDropped(t *testing.T) {
	// Sells without matching buys net negative and are dropped, not
	// modeled as short exposure.
	positions := AggregatePositions([]*database.Trade{
		spotTrade("ETH", "sell", 3000, 2, 5),
	})

	if len(positions) != 0 {
		t.Fatalf("Expected all-sell asset to be excluded, got %d positions", len(positions))
	}
}

func TestAggregatePositionsDefaultToBuy(t *testing.T) {
	// An entry without a side marker counts as a buy.
	positions := AggregatePositions([]*database.Trade{
		spotTrade("SOL", "", 100, 5, 0),
	})

	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}
	if !almostEqual(positions[0].NetQuantity, 5) {
		t.Errorf("Expected net quantity 5, got %f", positions[0].NetQuantity)
	}
}

func TestAggregatePositionsCaseInsensitiveGrouping(t *testing.T) {
	positions := AggregatePositions([]*database.Trade{
		spotTrade("btc", "buy", 40000, 0.1, 1),
		spotTrade("BTC", "buy", 42000, 0.1, 1),
	})

	if len(positions) != 1 {
		t.Fatalf("Expected one grouped position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.Asset != "BTC" {
		t.Errorf("Expected canonical asset BTC, got %s", pos.Asset)
	}
	if !almostEqual(pos.NetQuantity, 0.2) {
		t.Errorf("Expected net quantity 0.2, got %f", pos.NetQuantity)
	}
	if !almostEqual(pos.Fees, 2) {
		t.Errorf("Expected fees 2, got %f", pos.Fees)
	}
}

func TestAggregatePositionsFeesAlwaysAccumulate(t *testing.T) {
	// Fees are unsigned: a sell adds its fee just like a buy.
	positions := AggregatePositions([]*database.Trade{
		spotTrade("BTC", "buy", 40000, 0.2, 10),
		spotTrade("BTC", "sell", 50000, 0.1, 7),
	})

	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if !almostEqual(pos.Fees, 17) {
		t.Errorf("Expected fees 17, got %f", pos.Fees)
	}
	if !almostEqual(pos.NetQuantity, 0.1) {
		t.Errorf("Expected net quantity 0.1, got %f", pos.NetQuantity)
	}
	if !almostEqual(pos.CostBasis, 3000) {
		t.Errorf("Expected cost basis 3000, got %f", pos.CostBasis)
	}
}

func TestAggregatePositionsIgnoresNonSpot(t *testing.T) {
	pnl := 150.0
	defi := &database.Trade{
		Category:   database.CategoryDefi,
		Asset:      "BTC",
		Price:      1000,
		Quantity:   1,
		ProfitLoss: &pnl,
	}
	positions := AggregatePositions([]*database.Trade{defi})

	if len(positions) != 0 {
		t.Fatalf("Expected investment categories to be ignored, got %d positions", len(positions))
	}
}

func TestAverageCostGuardsZeroQuantity(t *testing.T) {
	pos := Position{Asset: "BTC", NetQuantity: 0, CostBasis: 100}
	if pos.AverageCost() != 0 {
		t.Errorf("Expected average cost 0 for zero quantity, got %f", pos.AverageCost())
	}
}
