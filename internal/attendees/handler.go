package attendees

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/response"
	"github.com/presenca/backend/pkg/utils"
)

// SaveRequest is the body for POST and PUT /admin/attendees.
type SaveRequest struct {
	Phone       string     `json:"phone" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	RegionID    *uuid.UUID `json:"region_id"`
	RegionLabel string     `json:"region_label"`
	Email       string     `json:"email"`
}

// Handler serves attendee administration.
type Handler struct {
	repo        store.Attendees
	regions     store.Regions
	attendances store.Attendances
	logger      *zap.Logger
}

// NewHandler creates an attendees handler.
func NewHandler(repo store.Attendees, regions store.Regions, attendances store.Attendances, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, regions: regions, attendances: attendances, logger: logger}
}

// Normalize canonicalises phone and trims the free-text fields. Name is upper-cased.
func Normalize(a *models.Attendee) error {
	a.Phone = utils.CanonicalPhone(a.Phone)
	if a.Phone == "" {
		return apperr.Invalid("phone", "must contain digits")
	}
	a.Name = strings.ToUpper(strings.TrimSpace(a.Name))
	if a.Name == "" {
		return apperr.Invalid("name", "required")
	}
	a.RegionLabel = strings.ToUpper(strings.TrimSpace(a.RegionLabel))
	a.Email = strings.TrimSpace(a.Email)
	return nil
}

// bindRegion copies the chosen region's name into the label, which survives the region's deletion.
func (h *Handler) bindRegion(ctx context.Context, a *models.Attendee) error {
	if a.RegionID == nil {
		return nil
	}
	r, err := h.regions.GetByID(ctx, *a.RegionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("region_id", "unknown region")
	}
	if err != nil {
		return err
	}
	a.RegionName = r.Name
	a.RegionLabel = r.Name
	return nil
}

func (r SaveRequest) attendee() *models.Attendee {
	return &models.Attendee{Phone: r.Phone, Name: r.Name, RegionID: r.RegionID, RegionLabel: r.RegionLabel, Email: r.Email}
}

// List handles GET /admin/attendees?q=&region_id=&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	f := store.AttendeeFilter{Query: c.Query("q")}
	if v := c.Query("region_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid region_id")
			return
		}
		f.RegionID = &id
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list attendees failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/attendees/:id. Includes the attendee's total attendance count.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.attendances.CountByAttendees(c.Request.Context(), []uuid.UUID{id})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"attendee": a, "attendance_count": counts[id]})
}

// Create handles POST /admin/attendees.
func (h *Handler) Create(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a := req.attendee()
	if err := Normalize(a); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.bindRegion(c.Request.Context(), a); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		h.logger.Warn("create attendee failed", zap.Error(err), zap.String("phone", utils.MaskPhone(a.Phone)))
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Update handles PUT /admin/attendees/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a := req.attendee()
	a.ID = id
	if err := Normalize(a); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.bindRegion(c.Request.Context(), a); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), a); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /admin/attendees/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("attendee deleted", zap.String("attendee_id", id.String()))
	response.NoContent(c)
}
