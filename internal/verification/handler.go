package verification

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/auth"
	"carbon-market/mrv-backend/internal/monitoring"
)

// PreferenceSource supplies a verifier's saved queue defaults. A nil source
// leaves filters as requested.
type PreferenceSource interface {
	DefaultQueuePriority(ctx context.Context, verifierID uuid.UUID) string
}

// Handler handles HTTP requests for the verification workflow
type Handler struct {
	service *Service
	prefs   PreferenceSource
	logger  *zap.Logger
}

// NewHandler creates a new verification handler
func NewHandler(service *Service, prefs PreferenceSource, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		prefs:   prefs,
		logger:  logger,
	}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reviews := router.Group("/reviews")
	{
		reviews.POST("", h.submit)
		reviews.GET("/queue", h.listQueue)
		reviews.GET("/:reportId", h.getReview)
		reviews.POST("/:reportId/start", h.startReview)
		reviews.PUT("/:reportId/checklist/:itemId", h.updateChecklistItem)
		reviews.POST("/:reportId/decision", h.decide)
		reviews.POST("/:reportId/resubmit", h.resubmit)
		reviews.GET("/:reportId/calculation", h.calculation)
	}
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) getReview(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}
	review, err := h.service.GetReview(c.Request.Context(), reportID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) startReview(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}
	verifierID, _ := auth.VerifierID(c)

	review, err := h.service.StartReview(c.Request.Context(), reportID, verifierID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) updateChecklistItem(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ItemID = c.Param("itemId")
	req.VerifierID, _ = auth.VerifierID(c)

	review, err := h.service.UpdateChecklistItem(c.Request.Context(), reportID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) decide(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.VerifierID, _ = auth.VerifierID(c)

	review, err := h.service.Decide(c.Request.Context(), reportID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) resubmit(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}

	var req ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.service.Resubmit(c.Request.Context(), reportID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) calculation(c *gin.Context) {
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}
	result, err := h.service.CalculateForReport(c.Request.Context(), reportID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listQueue(c *gin.Context) {
	var filter QueueFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Apply the verifier's saved default when no explicit filter was given
	if filter.Priority == nil && h.prefs != nil {
		if verifierID, ok := auth.VerifierID(c); ok {
			if saved := h.prefs.DefaultQueuePriority(c.Request.Context(), verifierID); saved != "" {
				priority := Priority(saved)
				filter.Priority = &priority
			}
		}
	}

	entries, err := h.service.ListQueue(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *Handler) reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses. Stale versions come
// back as 409 with a refresh hint; incomplete verification returns the
// specific blocking items so reviewers can see what is left.
func (h *Handler) respondError(c *gin.Context, err error) {
	var incomplete *IncompleteVerificationError
	var invalid *InvalidTransitionError
	var inputs *assessment.IncompleteInputsError

	switch {
	case errors.Is(err, ErrReviewNotFound), errors.Is(err, monitoring.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrStaleVersion):
		c.JSON(http.StatusConflict, gin.H{"error": ErrStaleVersion.Error()})
	case errors.Is(err, ErrNotesRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &incomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          "verification incomplete",
			"blocking_items": incomplete.Blocking,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
	case errors.As(err, &inputs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "incomplete inputs",
			"missing": inputs.Missing,
		})
	default:
		h.logger.Error("Unhandled verification error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
