package events

import (
	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/response"
)

// EventRequest is the body for POST /admin/events and PUT /admin/events/:id. Dates are YYYY-MM-DD.
type EventRequest struct {
	Name      string `json:"name" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// MeetingRequest is the body for POST /admin/events/:id/meetings and PUT /admin/meetings/:id.
type MeetingRequest struct {
	Title     string `json:"title"`
	Date      string `json:"date" binding:"required"`
	IsSpecial bool   `json:"is_special"`
}

// Handler serves event and meeting administration.
type Handler struct {
	svc      *Service
	events   store.Events
	meetings store.Meetings
	logger   *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, events store.Events, meetings store.Meetings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, events: events, meetings: meetings, logger: logger}
}

func (r EventRequest) event() (*models.Event, bool) {
	start, err1 := civil.ParseDate(r.StartDate)
	end, err2 := civil.ParseDate(r.EndDate)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return &models.Event{Name: r.Name, StartDate: start, EndDate: end}, true
}

// List handles GET /admin/events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.events.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/events/:id, returning the event with its meetings.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	d, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, ok := req.event()
	if !ok {
		response.BadRequest(c, "dates must be YYYY-MM-DD")
		return
	}
	if err := h.svc.CreateEvent(c.Request.Context(), e); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("name", e.Name))
	response.Created(c, e)
}

// Update handles PUT /admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, ok := req.event()
	if !ok {
		response.BadRequest(c, "dates must be YYYY-MM-DD")
		return
	}
	e.ID = id
	if err := h.svc.UpdateEvent(c.Request.Context(), e); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.events.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("event deleted", zap.String("event_id", id.String()))
	response.NoContent(c)
}

// CreateMeeting handles POST /admin/events/:id/meetings.
func (h *Handler) CreateMeeting(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	m := &models.Meeting{EventID: eventID, Title: req.Title, Date: date, IsSpecial: req.IsSpecial}
	if err := h.svc.CreateMeeting(c.Request.Context(), m); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// UpdateMeeting handles PUT /admin/meetings/:id.
func (h *Handler) UpdateMeeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	m := &models.Meeting{ID: id, Title: req.Title, Date: date, IsSpecial: req.IsSpecial}
	if err := h.svc.UpdateMeeting(c.Request.Context(), m); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// DeleteMeeting handles DELETE /admin/meetings/:id.
func (h *Handler) DeleteMeeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	if err := h.meetings.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
