package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Roles carried in the token. The original administrator may run destructive operations.
const (
	RoleAdmin    = "admin"
	RoleOriginal = "original"
)

// RoleOf returns the token role for an admin.
func RoleOf(a *models.Admin) string {
	if a.IsOriginal {
		return RoleOriginal
	}
	return RoleAdmin
}

// Claims holds JWT claims for an administrator.
type Claims struct {
	AdminID    uuid.UUID `json:"admin_id"`
	AttendeeID uuid.UUID `json:"attendee_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
		now:         time.Now,
	}
}

// Generate creates a new JWT for the administrator.
func (s *JWTService) Generate(admin *models.Admin, name string) (string, error) {
	now := s.now()
	claims := Claims{
		AdminID:    admin.ID,
		AttendeeID: admin.AttendeeID,
		Name:       name,
		Role:       RoleOf(admin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAdminID validates a token and returns the admin id; used by the dashboard WebSocket.
func (s *JWTService) ValidateAdminID(tokenString string) (string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.AdminID.String(), nil
}
