package alerts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves monitoring advisories
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes registers advisory routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/projects/:projectId/advisories", h.advisories)
}

func (h *Handler) advisories(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	advisories, err := h.engine.Evaluate(c.Request.Context(), projectID)
	if err != nil {
		h.logger.Error("Failed to evaluate advisories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advisories": advisories, "total": len(advisories)})
}
