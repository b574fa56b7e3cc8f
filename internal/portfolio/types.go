package portfolio

import (
	"time"
)

// Position is the netted holding for one asset, derived from its full
// spot buy/sell history. Positions are never persisted.
type Position struct {
	Asset       string  `json:"asset"`
	NetQuantity float64 `json:"net_quantity"`
	CostBasis   float64 `json:"cost_basis"` // Signed sum of buy costs minus sell costs
	Fees        float64 `json:"fees"`       // Always accumulated, regardless of side
}

// AverageCost is the weighted-average purchase price. Only meaningful when
// the net quantity is positive.
func (p Position) AverageCost() float64 {
	if p.NetQuantity <= 0 {
		return 0
	}
	return p.CostBasis / p.NetQuantity
}

// Invested is the total capital tied up in the position, fees included.
func (p Position) Invested() float64 {
	return p.CostBasis + p.Fees
}

// AssetValuation is the per-asset output of the valuator.
type AssetValuation struct {
	Asset            string   `json:"asset"`
	Quantity         float64  `json:"quantity"`
	AverageCost      float64  `json:"average_cost"`
	Invested         float64  `json:"invested"`
	CurrentPrice     *float64 `json:"current_price"` // nil when unavailable
	CurrentValue     float64  `json:"current_value"`
	UnrealizedPnL    float64  `json:"unrealized_pnl"`
	PnLPercent       float64  `json:"pnl_percent"`
	PriceUnavailable bool     `json:"price_unavailable"`
}

// SpotValuation aggregates the externally priced holdings. Assets whose
// price is unavailable contribute to TotalInvested but are excluded from
// the value and PnL sums so a missing quote never reads as a total loss.
type SpotValuation struct {
	Assets            []AssetValuation `json:"assets"`
	TotalInvested     float64          `json:"total_invested"`
	TotalCurrentValue float64          `json:"total_current_value"`
	TotalUnrealized   float64          `json:"total_unrealized_pnl"`
	PnLPercent        float64          `json:"pnl_percent"`
	UnavailableAssets []string         `json:"unavailable_assets,omitempty"`
	Stale             bool             `json:"stale"` // Served from cache after a failed refresh
}

// ManualValuation aggregates the investment categories whose profit/loss is
// trusted verbatim from the trader's entries.
type ManualValuation struct {
	Invested     float64 `json:"invested"`
	ProfitLoss   float64 `json:"profit_loss"`
	CurrentValue float64 `json:"current_value"`
	Flagged      int     `json:"flagged,omitempty"` // Investment entries that arrived without profit_loss
}

// CashSummary nets deposits against withdrawals.
type CashSummary struct {
	Deposits    float64 `json:"deposits"`
	Withdrawals float64 `json:"withdrawals"`
	NetCash     float64 `json:"net_cash"`
}

// Snapshot is the grand-total composition. It is the single source of truth
// for "portfolio value"; no other component computes a competing total.
type Snapshot struct {
	Currency          string          `json:"currency"`
	TotalInvested     float64         `json:"total_invested"`
	TotalCurrentValue float64         `json:"total_current_value"`
	TotalUnrealized   float64         `json:"total_unrealized_pnl"`
	PnLPercent        float64         `json:"pnl_percent"`
	NetCash           float64         `json:"net_cash"`
	GrandTotal        float64         `json:"grand_total"` // Current value plus net cash
	Spot              SpotValuation   `json:"spot"`
	Manual            ManualValuation `json:"manual"`
	Cash              CashSummary     `json:"cash"`
	Warnings          []string        `json:"warnings,omitempty"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// pnlPercent guards the divide by zero every percentage field shares:
// a zero invested basis always reads as 0%, never NaN or Infinity.
func pnlPercent(pnl, invested float64) float64 {
	if invested == 0 {
		return 0
	}
	return pnl / invested * 100
}
