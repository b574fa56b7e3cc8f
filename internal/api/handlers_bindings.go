package api

import (
	"net/http"

	"coinfolio/internal/database"

	"github.com/gin-gonic/gin"
)

// bindingRequest is the payload for an investor requesting read access
type bindingRequest struct {
	TraderID string `json:"trader_id" binding:"required"`
}

// bindingDecision is the payload for a trader resolving a request
type bindingDecision struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// handleListBindings returns bindings where the user is either side
func (s *Server) handleListBindings(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	bindings, err := s.repo.ListBindingsForUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to list bindings", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list bindings")
		return
	}

	successResponse(c, bindings)
}

// handleRequestBinding lets an investor ask a trader for portfolio access
func (s *Server) handleRequestBinding(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.TraderID == userID {
		errorResponse(c, http.StatusBadRequest, "cannot bind to yourself")
		return
	}

	trader, err := s.repo.GetUserByID(c.Request.Context(), req.TraderID)
	if err != nil || trader.Role != database.RoleTrader {
		errorResponse(c, http.StatusNotFound, "trader not found")
		return
	}

	binding := &database.Binding{
		InvestorID: userID,
		TraderID:   req.TraderID,
	}
	if err := s.repo.CreateBinding(c.Request.Context(), binding); err != nil {
		s.logger.Error("Failed to create binding", "error", err)
		errorResponse(c, http.StatusConflict, "binding already exists")
		return
	}

	s.eventBus.PublishBindingRequested(binding.TraderID, binding.InvestorID, binding.ID)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": binding})
}

// handleResolveBinding lets a trader approve or reject a pending request
func (s *Server) handleResolveBinding(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req bindingDecision
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	bindingID := c.Param("id")
	binding, err := s.repo.UpdateBindingStatus(c.Request.Context(), userID, bindingID, req.Status)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "binding not found")
		return
	}

	s.eventBus.PublishBindingResolved(binding.InvestorID, binding.ID, binding.Status)

	successResponse(c, binding)
}
