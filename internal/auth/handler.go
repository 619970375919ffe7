package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/response"
	"github.com/presenca/backend/pkg/utils"
)

// LoginRequest is the body for POST /admin/login.
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GrantRequest is the body for POST /admin/admins.
type GrantRequest struct {
	AttendeeID uuid.UUID `json:"attendee_id" binding:"required"`
	Password   string    `json:"password" binding:"required,min=6"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token    string          `json:"token"`
	Role     string          `json:"role"`
	Attendee models.Attendee `json:"attendee"`
}

// Handler handles administrator login and grants.
type Handler struct {
	attendees store.Attendees
	admins    store.Admins
	jwt       *JWTService
	logger    *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(attendees store.Attendees, admins store.Admins, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{attendees: attendees, admins: admins, jwt: jwt, logger: logger}
}

// Login handles POST /admin/login: canonical phone plus password.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	phone := utils.CanonicalPhone(req.Phone)
	if phone == "" {
		response.BadRequest(c, "phone must contain digits")
		return
	}
	ctx := c.Request.Context()

	attendee, err := h.attendees.FindByPhone(ctx, phone)
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	if attendee == nil {
		h.logger.Debug("login failed: unknown phone", zap.String("phone", utils.MaskPhone(phone)))
		response.Unauthorized(c, "invalid phone or password")
		return
	}
	admin, err := h.admins.FindByAttendee(ctx, attendee.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if admin == nil || !utils.CheckPassword(req.Password, admin.PasswordHash) {
		h.logger.Debug("login failed: not an admin or wrong password", zap.String("phone", utils.MaskPhone(phone)))
		response.Unauthorized(c, "invalid phone or password")
		return
	}

	token, err := h.jwt.Generate(admin, attendee.Name)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Role: RoleOf(admin), Attendee: *attendee})
}

// Grant handles POST /admin/admins (original admin only): makes an attendee an administrator.
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	if _, err := h.attendees.GetByID(ctx, req.AttendeeID); err != nil {
		response.Error(c, err)
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	admin := &models.Admin{AttendeeID: req.AttendeeID, PasswordHash: hash}
	if err := h.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			response.Conflict(c, "attendee is already an admin")
			return
		}
		response.Error(c, err)
		return
	}
	h.logger.Info("admin granted", zap.String("admin_id", admin.ID.String()), zap.String("attendee_id", req.AttendeeID.String()))
	response.Created(c, admin)
}
