package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "auth.user_id"
	roleKey   = "auth.role"
)

// RequireUser rejects requests without a valid bearer token and stores the
// tenant user on the context.
func RequireUser(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after RequireUser.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Role(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated tenant user, or "" outside RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Role returns the authenticated user's role.
func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
