package portfolio

import (
	"fmt"
	"time"
)

// Compose combines the spot valuation, the manual valuation, and the cash
// summary into the one top-level snapshot. Pure function; identical inputs
// yield identical output.
func Compose(currency string, spot SpotValuation, manual ManualValuation, cash CashSummary, now time.Time) Snapshot {
	snapshot := Snapshot{
		Currency:    currency,
		Spot:        spot,
		Manual:      manual,
		Cash:        cash,
		NetCash:     cash.NetCash,
		GeneratedAt: now,
	}

	snapshot.TotalInvested = spot.TotalInvested + manual.Invested
	snapshot.TotalCurrentValue = spot.TotalCurrentValue + manual.CurrentValue
	snapshot.TotalUnrealized = spot.TotalUnrealized + manual.ProfitLoss
	snapshot.PnLPercent = pnlPercent(snapshot.TotalUnrealized, snapshot.TotalInvested)
	snapshot.GrandTotal = snapshot.TotalCurrentValue + cash.NetCash

	if spot.Stale {
		snapshot.Warnings = append(snapshot.Warnings, "spot prices are stale: the last refresh failed and cached quotes were used")
	}
	for _, asset := range spot.UnavailableAssets {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("price unavailable for %s: excluded from current value", asset))
	}
	if manual.Flagged > 0 {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("%d investment entries missing profit_loss were counted as 0", manual.Flagged))
	}

	return snapshot
}
