package database

import (
	"time"
)

// TradeCategory identifies how a ledger entry is valued.
type TradeCategory string

const (
	CategorySpot            TradeCategory = "spot"
	CategoryFutures         TradeCategory = "futures"
	CategoryDefi            TradeCategory = "defi"
	CategoryDualInvestment  TradeCategory = "dual_investment"
	CategoryLiquidityPool   TradeCategory = "liquidity_pool"
	CategoryLiquidityMining TradeCategory = "liquidity_mining"
)

// IsInvestment reports whether the category is valued from the trader's
// manually entered profit_loss instead of an external market price.
func (c TradeCategory) IsInvestment() bool {
	switch c {
	case CategoryDefi, CategoryDualInvestment, CategoryLiquidityPool, CategoryLiquidityMining:
		return true
	}
	return false
}

// Valid reports whether the category is one of the known values.
func (c TradeCategory) Valid() bool {
	switch c {
	case CategorySpot, CategoryFutures, CategoryDefi, CategoryDualInvestment,
		CategoryLiquidityPool, CategoryLiquidityMining:
		return true
	}
	return false
}

// Supported ledger currencies.
const (
	CurrencyUSD = "USD"
	CurrencyPHP = "PHP"
)

// Trade is one manually logged ledger entry.
type Trade struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Category     TradeCategory          `json:"category"`
	Asset        string                 `json:"asset"`
	Price        float64                `json:"price"`
	Currency     string                 `json:"currency"`
	Quantity     float64                `json:"quantity"`
	Fees         float64                `json:"fees"`
	ProfitLoss   *float64               `json:"profit_loss,omitempty"` // Required for investment categories
	Details      map[string]interface{} `json:"details,omitempty"`     // Category-specific: side, platform, apy, strike, ...
	Notes        string                 `json:"notes,omitempty"`
	TransactedAt time.Time              `json:"transacted_at"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Cashflow types.
const (
	CashflowDeposit    = "deposit"
	CashflowWithdrawal = "withdrawal"
)

// Cashflow is one deposit or withdrawal. It contributes to net cash but
// never to PnL.
type Cashflow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"type"` // deposit or withdrawal
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Label        string    `json:"label,omitempty"` // Source or destination
	Notes        string    `json:"notes,omitempty"`
	TransactedAt time.Time `json:"transacted_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Binding states.
const (
	BindingPending  = "pending"
	BindingApproved = "approved"
	BindingRejected = "rejected"
)

// Binding is the approval relationship letting an investor read a trader's
// portfolio.
type Binding struct {
	ID         string    `json:"id"`
	InvestorID string    `json:"investor_id"`
	TraderID   string    `json:"trader_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User roles.
const (
	RoleTrader   = "trader"
	RoleInvestor = "investor"
)

// User is an account. Traders own ledgers; investors read bound traders'
// ledgers.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuditEntry is one append-only record of a ledger mutation.
type AuditEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"` // create, update, delete
	Entity    string    `json:"entity"` // trade or cashflow
	EntityID  string    `json:"entity_id"`
	Payload   string    `json:"payload,omitempty"` // JSON snapshot of the row
	CreatedAt time.Time `json:"created_at"`
}
