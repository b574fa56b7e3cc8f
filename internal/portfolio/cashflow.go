package portfolio

import (
	"coinfolio/internal/database"
)

// SummarizeCashflows nets deposits against withdrawals into the available
// cash figure. Cash never contributes to PnL.
func SummarizeCashflows(cashflows []*database.Cashflow) CashSummary {
	var cs CashSummary

	for _, cf := range cashflows {
		switch cf.Type {
		case database.CashflowDeposit:
			cs.Deposits += cf.Amount
		case database.CashflowWithdrawal:
			cs.Withdrawals += cf.Amount
		}
	}

	cs.NetCash = cs.Deposits - cs.Withdrawals
	return cs
}
