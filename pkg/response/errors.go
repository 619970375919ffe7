package response

import (
	"github.com/gin-gonic/gin"

	"github.com/presenca/backend/pkg/apperr"
)

// Error sends the status matching err's kind. Unclassified errors become a bare 500 so
// storage details never reach the client.
func Error(c *gin.Context, err error) {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		NotFound(c, err.Error())
	case apperr.ErrValidation:
		BadRequest(c, err.Error())
	case apperr.ErrConflict:
		Conflict(c, err.Error())
	case apperr.ErrUnavailable:
		ServiceUnavailable(c, "storage unavailable, try again")
	default:
		Internal(c, "internal error")
	}
}
