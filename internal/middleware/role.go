package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/presenca/backend/internal/auth"
	"github.com/presenca/backend/pkg/response"
)

// RequireRole lets through only tokens carrying one of roles. It must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == "" {
			response.Unauthorized(c, "missing admin context")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "only the original administrator may do this")
	}
}

// RequireOriginal guards destructive routes: granting admins and purging data.
func RequireOriginal() gin.HandlerFunc {
	return RequireRole(auth.RoleOriginal)
}
