package portfolio

import (
	"coinfolio/internal/database"

	"github.com/rs/zerolog"
)

// AggregateManual sums the trader-supplied profit/loss over every investment
// category entry, with (price*quantity)+fees as the invested basis. There
// are no external calls; the figures are trusted verbatim since DeFi and LP
// returns cannot be independently verified.
//
// The persistence layer's constraints guarantee investment entries carry a
// profit_loss, but an entry that arrives without one is counted as 0 and
// flagged rather than crashing the valuation.
func AggregateManual(trades []*database.Trade, logger zerolog.Logger) ManualValuation {
	var mv ManualValuation

	for _, trade := range trades {
		if !trade.Category.IsInvestment() {
			continue
		}

		mv.Invested += trade.Price*trade.Quantity + trade.Fees

		if trade.ProfitLoss == nil {
			mv.Flagged++
			logger.Warn().
				Str("trade_id", trade.ID).
				Str("category", string(trade.Category)).
				Msg("investment entry missing profit_loss, counted as 0")
			continue
		}
		mv.ProfitLoss += *trade.ProfitLoss
	}

	mv.CurrentValue = mv.Invested + mv.ProfitLoss
	return mv
}
