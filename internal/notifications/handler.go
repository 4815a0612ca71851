package notifications

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
)

// Handler exposes the notification websocket
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// RegisterRoutes registers notification routes. The group must already run
// auth.RequireUser.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/notifications/ws", h.connect)
}

// connect handles GET /api/v1/notifications/ws
func (h *Handler) connect(c *gin.Context) {
	// The upgrader has already answered the request on failure.
	if _, err := h.manager.HandleConnection(c.Writer, c.Request, auth.UserID(c)); err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
	}
}
