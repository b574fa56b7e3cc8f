package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the authentication HTTP endpoints
type Handlers struct {
	service *Service
}

// NewHandlers creates new authentication handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the auth routes on the given router group
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup, jwtManager *JWTManager) {
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)

	protected := router.Group("")
	protected.Use(Middleware(jwtManager))
	protected.GET("/me", h.Me)
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if authErr, ok := err.(AuthError); ok {
			switch authErr.Code {
			case ErrEmailExists.Code:
				status = http.StatusConflict
			case ErrWeakPassword.Code, ErrInvalidRole.Code:
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"success": false, "error": authErr.Code, "message": authErr.Message})
			return
		}
		c.JSON(status, gin.H{"success": false, "error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": resp})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": authErr.Code, "message": authErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// Refresh handles POST /api/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": authErr.Code, "message": authErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": pair})
}

// Me handles GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.service.CurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": authErr.Code, "message": authErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
