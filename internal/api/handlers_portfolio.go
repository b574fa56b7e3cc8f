package api

import (
	"errors"
	"net/http"
	"strings"

	"coinfolio/internal/auth"
	"coinfolio/internal/database"
	"coinfolio/internal/portfolio"

	"github.com/gin-gonic/gin"
)

// resolvePortfolioOwner returns whose ledger the caller may read. Traders
// read their own; investors read the trader they are bound to.
func (s *Server) resolvePortfolioOwner(c *gin.Context, userID string) (string, bool) {
	if auth.GetUserRole(c) != database.RoleInvestor {
		return userID, true
	}

	traderID, err := s.repo.GetApprovedBindingTraderID(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to resolve binding", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to resolve binding")
		return "", false
	}
	if traderID == "" {
		errorResponse(c, http.StatusForbidden, "no approved trader binding")
		return "", false
	}
	return traderID, true
}

// handlePortfolioSnapshot computes the full portfolio valuation
func (s *Server) handlePortfolioSnapshot(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	ownerID, ok := s.resolvePortfolioOwner(c, userID)
	if !ok {
		return
	}

	currency := strings.ToUpper(c.DefaultQuery("currency", database.CurrencyUSD))
	if currency != database.CurrencyUSD && currency != database.CurrencyPHP {
		errorResponse(c, http.StatusBadRequest, "unsupported currency: "+currency)
		return
	}

	snapshot, err := s.portfolio.ComputeSnapshot(c.Request.Context(), ownerID, currency)
	if err != nil {
		if errors.Is(err, portfolio.ErrSpotUnavailable) {
			// The manual and cash slices are still good. Serve what we have
			// and let the warnings describe the missing spot valuation.
			c.JSON(http.StatusOK, gin.H{"success": true, "partial": true, "data": snapshot})
			return
		}
		s.logger.Error("Failed to compute snapshot", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to compute snapshot")
		return
	}

	s.eventBus.PublishSnapshotRefreshed(ownerID, currency, snapshot.GrandTotal, snapshot.Spot.Stale)

	successResponse(c, snapshot)
}

// handlePortfolioRefresh drops cached quotes and recomputes the snapshot
func (s *Server) handlePortfolioRefresh(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	ownerID, ok := s.resolvePortfolioOwner(c, userID)
	if !ok {
		return
	}

	s.prices.Clear(c.Request.Context())
	s.eventBus.PublishPriceCacheCleared(ownerID)

	currency := strings.ToUpper(c.DefaultQuery("currency", database.CurrencyUSD))
	if currency != database.CurrencyUSD && currency != database.CurrencyPHP {
		errorResponse(c, http.StatusBadRequest, "unsupported currency: "+currency)
		return
	}

	snapshot, err := s.portfolio.ComputeSnapshot(c.Request.Context(), ownerID, currency)
	if err != nil {
		if errors.Is(err, portfolio.ErrSpotUnavailable) {
			c.JSON(http.StatusOK, gin.H{"success": true, "partial": true, "data": snapshot})
			return
		}
		s.logger.Error("Failed to refresh snapshot", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to refresh snapshot")
		return
	}

	s.eventBus.PublishSnapshotRefreshed(ownerID, currency, snapshot.GrandTotal, snapshot.Spot.Stale)

	successResponse(c, snapshot)
}
