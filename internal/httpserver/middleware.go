package httpserver

import (
	"net/http"
	"strings"

	"commerce-backoffice/internal/domain"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// authMiddleware resolves the bearer token into a domain.Identity.
func authMiddleware(svc authService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := svc.Identify(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) domain.Identity {
	id, _ := c.Get(identityKey)
	v, _ := id.(domain.Identity)
	return v
}
