package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/presenca/backend/internal/auth"
	"github.com/presenca/backend/pkg/response"
)

// Gin context keys set from the admin token.
const (
	ContextAdminID    = "admin_id"
	ContextAttendeeID = "attendee_id"
	ContextRole       = "admin_role"
)

// queryAccessToken lets the dashboard open report downloads and QR images as plain links,
// where no Authorization header can be attached.
const queryAccessToken = "access_token"

// JWT validates the administrator bearer token and stores its claims in the context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization")
			return
		}
		claims, err := jwtService.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextAttendeeID, claims.AttendeeID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		t := c.Query(queryAccessToken)
		return t, t != ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// AdminID returns the authenticated administrator, or uuid.Nil outside the admin group.
func AdminID(c *gin.Context) uuid.UUID {
	id, _ := c.Value(ContextAdminID).(uuid.UUID)
	return id
}
