package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/auth"
)

// Handler handles HTTP requests for verifier preferences
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers settings routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/settings", h.get)
	router.PUT("/settings", h.update)
}

func (h *Handler) get(c *gin.Context) {
	verifierID, ok := auth.VerifierID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	prefs, err := h.service.Get(c.Request.Context(), verifierID)
	if err != nil {
		h.logger.Error("Failed to load preferences", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) update(c *gin.Context) {
	verifierID, ok := auth.VerifierID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs, err := h.service.Update(c.Request.Context(), verifierID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}
