package maintenance

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/middleware"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/response"
)

// Handler exposes destructive maintenance operations. Routes must sit behind RequireOriginal.
type Handler struct {
	purger store.Purger
	logger *zap.Logger
}

// NewHandler creates a maintenance handler.
func NewHandler(purger store.Purger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{purger: purger, logger: logger}
}

// Purge handles POST /admin/maintenance/purge.
func (h *Handler) Purge(c *gin.Context) {
	if err := h.purger.PurgeOperational(c.Request.Context()); err != nil {
		h.logger.Error("purge failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	h.logger.Warn("operational data purged", zap.String("admin_id", middleware.AdminID(c).String()))
	response.NoContent(c)
}
