package teams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/pkg/response"
)

// Handler serves team management for special meetings.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest is the body for POST /admin/meetings/:id/teams.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// MembersRequest is the body for PUT /admin/teams/:id/members.
type MembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
	LeaderID  *uuid.UUID  `json:"leader_id"`
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /admin/meetings/:id/teams.
func (h *Handler) List(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/meetings/:id/teams.
func (h *Handler) Create(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Create(c.Request.Context(), id, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// Delete handles DELETE /admin/meetings/:id/teams/:team_id.
func (h *Handler) Delete(c *gin.Context) {
	meetingID, ok := parseID(c, "id")
	if !ok {
		return
	}
	teamID, ok := parseID(c, "team_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), meetingID, teamID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Candidates handles GET /admin/teams/:id/candidates.
func (h *Handler) Candidates(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Candidates(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// SetMembers handles PUT /admin/teams/:id/members.
func (h *Handler) SetMembers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.SetMembers(c.Request.Context(), id, req.MemberIDs, req.LeaderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}
