package attendance

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/realtime"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/response"
)

// Publisher pushes live updates to dashboard viewers; satisfied by *realtime.Hub.
type Publisher interface {
	Publish(ctx context.Context, eventID uuid.UUID, kind string, payload interface{}) error
}

// Handler serves the administrator attendance list.
type Handler struct {
	attendances store.Attendances
	meetings    store.Meetings
	publisher   Publisher
	logger      *zap.Logger
}

// NewHandler creates an attendance handler. publisher may be nil.
func NewHandler(attendances store.Attendances, meetings store.Meetings, publisher Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{attendances: attendances, meetings: meetings, publisher: publisher, logger: logger}
}

// List handles GET /admin/meetings/:id/attendance.
func (h *Handler) List(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	ctx := c.Request.Context()
	m, err := h.meetings.GetByID(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.attendances.ListByMeeting(ctx, id)
	if err != nil {
		h.logger.Error("list attendance failed", zap.String("meeting_id", id.String()), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"meeting": m, "attendances": entries, "total": len(entries)})
}

// Delete handles DELETE /admin/attendances/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendance id")
		return
	}
	ctx := c.Request.Context()
	att, err := h.attendances.GetByID(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	m, err := h.meetings.GetByID(ctx, att.MeetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.attendances.Delete(ctx, id); err != nil {
		h.logger.Error("delete attendance failed", zap.String("attendance_id", id.String()), zap.Error(err))
		response.Error(c, err)
		return
	}
	h.logger.Info("attendance deleted", zap.String("attendance_id", id.String()), zap.String("meeting_id", m.ID.String()))

	if h.publisher != nil {
		payload := map[string]interface{}{"attendance_id": id, "meeting_id": m.ID, "attendee_id": att.AttendeeID}
		if err := h.publisher.Publish(ctx, m.EventID, realtime.EventAttendanceDeleted, payload); err != nil {
			h.logger.Warn("publish attendance deletion failed", zap.Error(err), zap.String("event_id", m.EventID.String()))
		}
	}
	response.NoContent(c)
}
