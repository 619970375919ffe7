package reports

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/pkg/queue"
	"github.com/presenca/backend/pkg/response"
)

// Jobs enqueues report jobs and reports their progress; satisfied by *queue.Queue.
type Jobs interface {
	EnqueueReport(ctx context.Context, payload queue.ReportPayload) (*queue.Job, error)
	Status(ctx context.Context, id string) (*queue.Status, error)
}

// Links signs download URLs for stored reports; satisfied by *storage.S3.
type Links interface {
	PresignReport(ctx context.Context, key string) (string, error)
}

// Handler serves report downloads and asynchronous exports.
type Handler struct {
	svc    *Service
	jobs   Jobs
	links  Links
	today  func() civil.Date
	logger *zap.Logger
}

// NewHandler creates a reports handler. jobs and links may be nil when Redis or S3 are not
// configured; the asynchronous endpoints then answer 503.
func NewHandler(svc *Service, jobs Jobs, links Links, today func() civil.Date, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, links: links, today: today, logger: logger}
}

func (h *Handler) send(c *gin.Context, req Request) {
	doc, err := h.svc.Export(c.Request.Context(), req, c.Param("fmt"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Name, doc.ContentType, doc.Body)
}

// Dashboard handles GET /admin/dashboard/export/:fmt.
func (h *Handler) Dashboard(c *gin.Context) {
	f, ok := analytics.FilterFromQuery(c)
	if !ok {
		response.BadRequest(c, "invalid region_id")
		return
	}
	h.send(c, Request{Kind: KindDashboard, Filter: f, Today: h.today()})
}

// Meeting handles GET /admin/meetings/:id/attendance/export/:fmt.
func (h *Handler) Meeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	h.send(c, Request{Kind: KindMeeting, ID: id})
}

// Event handles GET /admin/events/:id/attendance/export/:fmt.
func (h *Handler) Event(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	h.send(c, Request{Kind: KindEvent, ID: id})
}

// ExportRequest is the body of POST /admin/events/:id/exports.
type ExportRequest struct {
	Format string `json:"format" binding:"required"`
}

// Enqueue handles POST /admin/events/:id/exports.
func (h *Handler) Enqueue(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "background exports are not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := ForFormat(req.Format); err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.jobs.EnqueueReport(c.Request.Context(), queue.ReportPayload{
		Kind:     KindEvent,
		TargetID: id,
		Format:   req.Format,
		Today:    h.today().String(),
	})
	if err != nil {
		h.logger.Error("enqueue export failed", zap.String("event_id", id.String()), zap.Error(err))
		response.ServiceUnavailable(c, "could not queue export")
		return
	}
	response.Accepted(c, gin.H{"job_id": job.ID, "state": queue.StateQueued})
}

// Status handles GET /admin/exports/:id. A finished job carries a pre-signed download URL.
func (h *Handler) Status(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "background exports are not configured")
		return
	}
	st, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("read export status failed", zap.Error(err))
		response.ServiceUnavailable(c, "could not read export status")
		return
	}
	if st == nil {
		response.NotFound(c, "export not found")
		return
	}
	out := gin.H{"job": st}
	if st.State == queue.StateDone && h.links != nil {
		url, err := h.links.PresignReport(c.Request.Context(), st.Key)
		if err != nil {
			h.logger.Error("presign export failed", zap.String("key", st.Key), zap.Error(err))
			response.ServiceUnavailable(c, "could not sign download url")
			return
		}
		out["download_url"] = url
	}
	response.OK(c, out)
}
