package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/presenca/backend/pkg/response"
)

// HeaderAPIToken carries the shared secret of the external API.
const HeaderAPIToken = "X-API-Token"

// APIToken accepts requests carrying token in the X-API-Token header or the ?token= query
// parameter. An empty token disables the external API.
func APIToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Forbidden(c, "external API disabled")
			return
		}
		got := c.GetHeader(HeaderAPIToken)
		if got == "" {
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(c, "invalid API token")
			return
		}
		c.Next()
	}
}
