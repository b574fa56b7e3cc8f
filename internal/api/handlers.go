package api

import (
	"net/http"
	"strconv"
	"time"

	"coinfolio/internal/database"
	"coinfolio/internal/events"

	"github.com/gin-gonic/gin"
)

// tradeRequest is the payload for creating or updating a trade
type tradeRequest struct {
	Category     string                 `json:"category" binding:"required"`
	Asset        string                 `json:"asset" binding:"required"`
	Price        float64                `json:"price" binding:"required,gt=0"`
	Quantity     float64                `json:"quantity" binding:"required,gt=0"`
	Fees         float64                `json:"fees" binding:"gte=0"`
	Currency     string                 `json:"currency"`
	ProfitLoss   *float64               `json:"profit_loss"`
	Details      map[string]interface{} `json:"details"`
	Notes        string                 `json:"notes"`
	TransactedAt time.Time              `json:"transacted_at"`
}

func (r *tradeRequest) toTrade(userID string) (*database.Trade, string) {
	category := database.TradeCategory(r.Category)
	if !category.Valid() {
		return nil, "unknown trade category: " + r.Category
	}
	if category.IsInvestment() && r.ProfitLoss == nil {
		return nil, "profit_loss is required for " + r.Category + " entries"
	}

	currency := r.Currency
	if currency == "" {
		currency = database.CurrencyUSD
	}
	if currency != database.CurrencyUSD && currency != database.CurrencyPHP {
		return nil, "unsupported currency: " + currency
	}

	transactedAt := r.TransactedAt
	if transactedAt.IsZero() {
		transactedAt = time.Now()
	}

	return &database.Trade{
		UserID:       userID,
		Category:     category,
		Asset:        r.Asset,
		Price:        r.Price,
		Currency:     currency,
		Quantity:     r.Quantity,
		Fees:         r.Fees,
		ProfitLoss:   r.ProfitLoss,
		Details:      r.Details,
		Notes:        r.Notes,
		TransactedAt: transactedAt,
	}, ""
}

// handleListTrades returns the user's trades, optionally filtered by category
func (s *Server) handleListTrades(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	category := database.TradeCategory(c.Query("category"))
	if category != "" && !category.Valid() {
		errorResponse(c, http.StatusBadRequest, "unknown trade category: "+string(category))
		return
	}

	trades, err := s.repo.ListTradesForUser(c.Request.Context(), userID, category)
	if err != nil {
		s.logger.Error("Failed to list trades", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list trades")
		return
	}

	successResponse(c, trades)
}

// handleCreateTrade records a new journal entry
func (s *Server) handleCreateTrade(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	trade, problem := req.toTrade(userID)
	if problem != "" {
		errorResponse(c, http.StatusBadRequest, problem)
		return
	}

	if err := s.repo.CreateTrade(c.Request.Context(), trade); err != nil {
		s.logger.Error("Failed to create trade", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to create trade")
		return
	}

	s.eventBus.PublishTradeChange(events.EventTradeCreated, userID, trade.ID, trade.Asset, string(trade.Category))

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": trade})
}

// handleGetTrade returns one trade owned by the user
func (s *Server) handleGetTrade(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	trade, err := s.repo.GetTradeByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "trade not found")
		return
	}

	successResponse(c, trade)
}

// handleUpdateTrade replaces a trade's fields
func (s *Server) handleUpdateTrade(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	trade, problem := req.toTrade(userID)
	if problem != "" {
		errorResponse(c, http.StatusBadRequest, problem)
		return
	}
	trade.ID = c.Param("id")

	if err := s.repo.UpdateTrade(c.Request.Context(), trade); err != nil {
		errorResponse(c, http.StatusNotFound, "trade not found")
		return
	}

	s.eventBus.PublishTradeChange(events.EventTradeUpdated, userID, trade.ID, trade.Asset, string(trade.Category))

	successResponse(c, trade)
}

// handleDeleteTrade removes a trade owned by the user
func (s *Server) handleDeleteTrade(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	tradeID := c.Param("id")
	if err := s.repo.DeleteTrade(c.Request.Context(), userID, tradeID); err != nil {
		errorResponse(c, http.StatusNotFound, "trade not found")
		return
	}

	s.eventBus.PublishTradeChange(events.EventTradeDeleted, userID, tradeID, "", "")

	successResponse(c, gin.H{"deleted": tradeID})
}

// cashflowRequest is the payload for creating or updating a cashflow
type cashflowRequest struct {
	Type         string    `json:"type" binding:"required,oneof=deposit withdrawal"`
	Amount       float64   `json:"amount" binding:"required,gt=0"`
	Currency     string    `json:"currency"`
	Label        string    `json:"label"`
	Notes        string    `json:"notes"`
	TransactedAt time.Time `json:"transacted_at"`
}

func (r *cashflowRequest) toCashflow(userID string) *database.Cashflow {
	currency := r.Currency
	if currency == "" {
		currency = database.CurrencyUSD
	}
	transactedAt := r.TransactedAt
	if transactedAt.IsZero() {
		transactedAt = time.Now()
	}
	return &database.Cashflow{
		UserID:       userID,
		Type:         r.Type,
		Amount:       r.Amount,
		Currency:     currency,
		Label:        r.Label,
		Notes:        r.Notes,
		TransactedAt: transactedAt,
	}
}

// handleListCashflows returns the user's deposits and withdrawals
func (s *Server) handleListCashflows(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	cashflows, err := s.repo.ListCashflowsForUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to list cashflows", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list cashflows")
		return
	}

	successResponse(c, cashflows)
}

// handleCreateCashflow records a deposit or withdrawal
func (s *Server) handleCreateCashflow(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req cashflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cf := req.toCashflow(userID)
	if err := s.repo.CreateCashflow(c.Request.Context(), cf); err != nil {
		s.logger.Error("Failed to create cashflow", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to create cashflow")
		return
	}

	s.eventBus.PublishCashflowChange(events.EventCashflowCreated, userID, cf.ID, cf.Type, cf.Amount)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": cf})
}

// handleUpdateCashflow replaces a cashflow's fields
func (s *Server) handleUpdateCashflow(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req cashflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cf := req.toCashflow(userID)
	cf.ID = c.Param("id")

	if err := s.repo.UpdateCashflow(c.Request.Context(), cf); err != nil {
		errorResponse(c, http.StatusNotFound, "cashflow not found")
		return
	}

	s.eventBus.PublishCashflowChange(events.EventCashflowUpdated, userID, cf.ID, cf.Type, cf.Amount)

	successResponse(c, cf)
}

// handleDeleteCashflow removes a cashflow owned by the user
func (s *Server) handleDeleteCashflow(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	cashflowID := c.Param("id")
	if err := s.repo.DeleteCashflow(c.Request.Context(), userID, cashflowID); err != nil {
		errorResponse(c, http.StatusNotFound, "cashflow not found")
		return
	}

	s.eventBus.PublishCashflowChange(events.EventCashflowDeleted, userID, cashflowID, "", 0)

	successResponse(c, gin.H{"deleted": cashflowID})
}

// handleListAudit returns the user's recent ledger mutations
func (s *Server) handleListAudit(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	entries, err := s.repo.ListAuditEntries(c.Request.Context(), userID, limit)
	if err != nil {
		s.logger.Error("Failed to list audit entries", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	successResponse(c, entries)
}
