package portfolio

import (
	"sort"
	"strings"

	"coinfolio/internal/database"
)

// AggregatePositions nets a user's spot trades into one position per asset.
// Non-spot entries are ignored. Pure function of its input.
//
// An entry counts as a sell only when its detail map explicitly says so;
// anything else is a buy. Quantity and cost accumulate signed by side, fees
// accumulate unconditionally. Assets that net to zero or negative quantity
// are dropped: sells without matching buys under-report rather than model
// short exposure.
func AggregatePositions(trades []*database.Trade) []Position {
	type accum struct {
		quantity float64
		cost     float64
		fees     float64
	}
	byAsset := make(map[string]*accum)

	for _, trade := range trades {
		if trade.Category != database.CategorySpot {
			continue
		}
		asset := strings.ToUpper(strings.TrimSpace(trade.Asset))
		if asset == "" {
			continue
		}

		acc := byAsset[asset]
		if acc == nil {
			acc = &accum{}
			byAsset[asset] = acc
		}

		sign := 1.0
		if isSell(trade) {
			sign = -1.0
		}
		acc.quantity += sign * trade.Quantity
		acc.cost += sign * trade.Price * trade.Quantity
		acc.fees += trade.Fees
	}

	positions := make([]Position, 0, len(byAsset))
	for asset, acc := range byAsset {
		if acc.quantity <= 0 {
			continue
		}
		positions = append(positions, Position{
			Asset:       asset,
			NetQuantity: acc.quantity,
			CostBasis:   acc.cost,
			Fees:        acc.fees,
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Asset < positions[j].Asset
	})
	return positions
}

// isSell reports whether the trade's detail map explicitly marks it a sell.
// Absent or unrecognized side markers default to buy.
func isSell(trade *database.Trade) bool {
	if trade.Details == nil {
		return false
	}
	side, ok := trade.Details["side"].(string)
	if !ok {
		return false
	}
	return strings.EqualFold(side, "sell")
}
