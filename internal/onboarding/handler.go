package onboarding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
)

// Handler handles HTTP requests for onboarding records
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers onboarding routes. The group must already run
// auth.RequireUser.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	onboarding := router.Group("/onboarding")
	{
		onboarding.GET("/existing", h.getExisting)
		onboarding.POST("", h.save)
		onboarding.PUT("/:user_id/approval", auth.RequireRole(auth.RoleAdmin), h.setApproval)
	}
}

// getExisting handles GET /api/v1/onboarding/existing
func (h *Handler) getExisting(c *gin.Context) {
	snapshot, err := h.service.GetExisting(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// save handles POST /api/v1/onboarding
func (h *Handler) save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.service.Save(c.Request.Context(), auth.UserID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// setApproval handles PUT /api/v1/onboarding/:user_id/approval
func (h *Handler) setApproval(c *gin.Context) {
	var req struct {
		ApprovalStatus ApprovalStatus `json:"approval_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetApproval(c.Request.Context(), c.Param("user_id"), req.ApprovalStatus); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var schemaErr *SchemaValidationError
	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": schemaErr.First(), "errors": schemaErr.Issues})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrEmptyRequest), errors.Is(err, ErrInvalidApproval):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Onboarding request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
