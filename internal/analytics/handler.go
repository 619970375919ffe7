package analytics

import (
	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/pkg/response"
)

// Handler serves the admin statistics endpoints.
type Handler struct {
	svc    *Service
	open   OpenTokenLister
	today  func() civil.Date
	logger *zap.Logger
}

// NewHandler creates an analytics handler. today returns the current local date.
func NewHandler(svc *Service, open OpenTokenLister, today func() civil.Date, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, open: open, today: today, logger: logger}
}

// FilterFromQuery reads ?q= and ?region_id=.
func FilterFromQuery(c *gin.Context) (Filter, bool) {
	f := Filter{Query: c.Query("q")}
	if v := c.Query("region_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, false
		}
		f.RegionID = &id
	}
	return f, true
}

// Dashboard handles GET /admin/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	f, ok := FilterFromQuery(c)
	if !ok {
		response.BadRequest(c, "invalid region_id")
		return
	}
	d, err := h.svc.Dashboard(c.Request.Context(), f, h.today())
	if err != nil {
		h.logger.Error("dashboard failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Event handles GET /admin/events/:id/stats.
func (h *Handler) Event(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	f, ok := FilterFromQuery(c)
	if !ok {
		response.BadRequest(c, "invalid region_id")
		return
	}
	stats, err := h.svc.Event(c.Request.Context(), id, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Absentees handles GET /admin/meetings/:id/absentees.
func (h *Handler) Absentees(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, list, err := h.svc.MeetingAbsentees(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"meeting": m, "absentees": list})
}

// OpenTokens handles GET /admin/tokens/open.
func (h *Handler) OpenTokens(c *gin.Context) {
	list, err := h.open.ListOpen(c.Request.Context(), h.today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
