package regions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/response"
)

// NameRequest is the body for POST /admin/regions and PUT /admin/regions/:id.
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler serves region administration.
type Handler struct {
	repo   store.Regions
	logger *zap.Logger
}

// NewHandler creates a regions handler.
func NewHandler(repo store.Regions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /regions. Public: the registration form needs it.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/regions.
func (h *Handler) Create(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.repo.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Rename handles PUT /admin/regions/:id.
func (h *Handler) Rename(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid region id")
		return
	}
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.repo.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// Delete handles DELETE /admin/regions/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid region id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("region deleted", zap.String("region_id", id.String()))
	response.NoContent(c)
}
