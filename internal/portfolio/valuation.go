package portfolio

import (
	"context"
)

// PriceSource supplies current prices for a set of asset symbols. A nil
// price means the source has no data for that symbol. The error is non-nil
// only when the outbound fetch itself failed; any prices gathered from cache
// before the failure are still returned.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string, currency string) (map[string]*float64, error)
}

// Valuate combines net positions with current prices into a per-asset and
// aggregate valuation.
//
// Assets with no available price are marked unavailable: their invested
// amount still counts toward TotalInvested, but they are excluded from the
// value and PnL sums rather than silently valued at zero.
//
// When the price fetch fails outright and no cached price covered any
// position, the error is returned and no zero-value portfolio is fabricated.
// When the fetch fails but cached prices cover part of the book, the
// valuation is returned marked Stale.
func Valuate(ctx context.Context, positions []Position, currency string, source PriceSource) (SpotValuation, error) {
	valuation := SpotValuation{Assets: make([]AssetValuation, 0, len(positions))}
	if len(positions) == 0 {
		return valuation, nil
	}

	symbols := make([]string, len(positions))
	for i, pos := range positions {
		symbols[i] = pos.Asset
	}

	prices, fetchErr := source.Prices(ctx, symbols, currency)

	anyPriced := false
	for _, pos := range positions {
		invested := pos.Invested()
		av := AssetValuation{
			Asset:       pos.Asset,
			Quantity:    pos.NetQuantity,
			AverageCost: pos.AverageCost(),
			Invested:    invested,
		}

		price := prices[pos.Asset]
		if price == nil {
			av.PriceUnavailable = true
			valuation.UnavailableAssets = append(valuation.UnavailableAssets, pos.Asset)
			valuation.TotalInvested += invested
			valuation.Assets = append(valuation.Assets, av)
			continue
		}

		anyPriced = true
		av.CurrentPrice = price
		av.CurrentValue = *price * pos.NetQuantity
		av.UnrealizedPnL = av.CurrentValue - invested
		av.PnLPercent = pnlPercent(av.UnrealizedPnL, invested)

		valuation.TotalInvested += invested
		valuation.TotalCurrentValue += av.CurrentValue
		valuation.TotalUnrealized += av.UnrealizedPnL
		valuation.Assets = append(valuation.Assets, av)
	}

	valuation.PnLPercent = pnlPercent(valuation.TotalUnrealized, valuation.TotalInvested)

	if fetchErr != nil {
		if !anyPriced {
			return SpotValuation{}, fetchErr
		}
		valuation.Stale = true
	}

	return valuation, nil
}
