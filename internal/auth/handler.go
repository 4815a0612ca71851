package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	tokens *TokenManager
}

func NewHandler(tokens *TokenManager) *Handler {
	return &Handler{tokens: tokens}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me reports who the bearer token belongs to.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": UserID(c),
		"role":    Role(c),
	})
}
