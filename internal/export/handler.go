package export

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/verification"
	"carbon-market/mrv-backend/pkg/storage"
)

// Handler serves audit exports: statements for decided reviews and the
// current queue as a spreadsheet
type Handler struct {
	service *verification.Service
	store   storage.ObjectStore
	logger  *zap.Logger
}

// NewHandler creates a new export handler
func NewHandler(service *verification.Service, store storage.ObjectStore, logger *zap.Logger) *Handler {
	return &Handler{service: service, store: store, logger: logger}
}

// RegisterRoutes registers export routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/reviews/:reportId/statement", h.statement)
	router.GET("/reviews/:reportId/statement/url", h.statementURL)
	router.GET("/reviews/queue/export", h.queueExport)
}

func (h *Handler) statement(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	review, err := h.service.GetReview(c.Request.Context(), reportID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	var buf bytes.Buffer
	if err := WriteStatementPDF(&buf, review); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="verification-statement.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// statementURL returns a short-lived link to the archived copy of a
// statement. The archive is written when the decision lands; a 404 here
// usually means the review is not decided yet.
func (h *Handler) statementURL(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	review, err := h.service.GetReview(c.Request.Context(), reportID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	url, err := h.store.PresignGet(c.Request.Context(), StatementKey(review), 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "statement not archived"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) queueExport(c *gin.Context) {
	var filter verification.QueueFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.service.ListQueue(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Queue export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var buf bytes.Buffer
	if err := WriteQueueXLSX(&buf, entries); err != nil {
		h.logger.Error("Queue export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="review-queue.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
