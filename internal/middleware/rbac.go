package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/access"
)

// RBACMiddleware lets the request through only when the caller holds one of
// requiredRoles. It must run after AuthzMiddleware.
func RBACMiddleware(requiredRoles ...access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if err := access.RequireIdentity(identity); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		for _, role := range requiredRoles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":          "insufficient permissions",
			"required_roles": requiredRoles,
			"user_role":      identity.Role,
		})
	}
}

func AdminOnlyMiddleware() gin.HandlerFunc {
	return RBACMiddleware(access.RoleAdmin)
}
