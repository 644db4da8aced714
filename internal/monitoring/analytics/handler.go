package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves monitoring summaries
type Handler struct {
	calc   *Calculator
	logger *zap.Logger
}

func NewHandler(calc *Calculator, logger *zap.Logger) *Handler {
	return &Handler{calc: calc, logger: logger}
}

// RegisterRoutes registers analytics routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/projects/:projectId/summary", h.summary)
}

func (h *Handler) summary(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	summary, err := h.calc.Summarize(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
