package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.GET("/me", RequireUser(handler.tokens), handler.Me)
	}
}
