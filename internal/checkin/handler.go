package checkin

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/pkg/response"
)

// ScanRequest is the body for POST /scan/:token.
type ScanRequest struct {
	Phone string `json:"phone"`
}

// RegisterRequest is the body for POST /register/:token.
type RegisterRequest struct {
	Phone    string     `json:"phone" binding:"required"`
	Name     string     `json:"name"`
	RegionID *uuid.UUID `json:"region_id"`
	Email    string     `json:"email"`
}

// APIRequest is the body for POST /api/attendance.
type APIRequest struct {
	Token string `json:"token" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

// Handler exposes the processor over HTTP.
type Handler struct {
	proc   *Processor
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a check-in handler. now defaults to time.Now.
func NewHandler(proc *Processor, now func() time.Time, logger *zap.Logger) *Handler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{proc: proc, now: now, logger: logger}
}

// view adds the links the scan page needs to the outcome.
func view(out Outcome) gin.H {
	h := gin.H{"outcome": out}
	if out.Redirected {
		h["redirect_to"] = "/scan/" + out.Token
	}
	if out.Status == StatusNeedsRegistration {
		h["register_url"] = "/register/" + out.Token + "?phone=" + url.QueryEscape(out.Phone)
	}
	return h
}

// Inspect handles GET /scan/:token. It reports whether the check-in form may be shown.
func (h *Handler) Inspect(c *gin.Context) {
	out, err := h.proc.Inspect(c.Request.Context(), c.Param("token"), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view(out))
}

// CheckIn handles POST /scan/:token.
func (h *Handler) CheckIn(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.proc.CheckIn(c.Request.Context(), c.Param("token"), req.Phone, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view(out))
}

// Register handles POST /register/:token.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.proc.Register(c.Request.Context(), RegisterInput{
		Token:    c.Param("token"),
		Phone:    req.Phone,
		Name:     req.Name,
		RegionID: req.RegionID,
		Email:    req.Email,
	}, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	if out.Status == StatusConfirmed {
		response.Created(c, view(out))
		return
	}
	response.OK(c, view(out))
}

// API handles POST /api/attendance for integrations authenticated with the API token.
// Unknown phones are not registered here; the outcome says needs_registration.
func (h *Handler) API(c *gin.Context) {
	var req APIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token and phone required")
		return
	}
	out, err := h.proc.CheckIn(c.Request.Context(), req.Token, req.Phone, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}
