package tokens

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/presenca/backend/pkg/response"
)

const qrSize = 256

// Handler serves token administration.
type Handler struct {
	registry *Registry
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates a tokens handler. baseURL prefixes the scan links encoded in QR images.
func NewHandler(registry *Registry, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// ScanURL is the link printed in a token's QR code.
func (h *Handler) ScanURL(value string) string {
	return h.baseURL + "/scan/" + value
}

// Issue handles POST /admin/meetings/:id/tokens.
func (h *Handler) Issue(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	t, err := h.registry.Issue(c.Request.Context(), meetingID)
	if err != nil {
		h.logger.Error("issue token failed", zap.Error(err), zap.String("meeting_id", meetingID.String()))
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"token": t, "scan_url": h.ScanURL(t.Value)})
}

// List handles GET /admin/meetings/:id/tokens.
func (h *Handler) List(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	list, err := h.registry.ListByMeeting(c.Request.Context(), meetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Toggle handles POST /admin/tokens/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid token id")
		return
	}
	t, err := h.registry.Toggle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// QR handles GET /admin/qr/:value, a PNG of the token scan URL.
func (h *Handler) QR(c *gin.Context) {
	t, err := h.registry.Resolve(c.Request.Context(), c.Param("value"))
	if err != nil {
		response.Error(c, err)
		return
	}
	png, err := qrcode.Encode(h.ScanURL(t.Value), qrcode.Medium, qrSize)
	if err != nil {
		h.logger.Error("encode qr failed", zap.Error(err))
		response.Internal(c, "failed to render qr code")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
