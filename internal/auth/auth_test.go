package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/store/memory"
	"github.com/presenca/backend/pkg/apperr"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	admin := &models.Admin{ID: uuid.New(), AttendeeID: uuid.New(), IsOriginal: true}

	token, err := svc.Generate(admin, "ANA")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.AdminID)
	assert.Equal(t, admin.AttendeeID, claims.AttendeeID)
	assert.Equal(t, RoleOriginal, claims.Role)

	id, err := svc.ValidateAdminID(token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID.String(), id)
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService("secret", 1)
	admin := &models.Admin{ID: uuid.New()}
	token, err := svc.Generate(admin, "ANA")
	require.NoError(t, err)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewJWTService("secret", 1)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func seedConfig() BootstrapConfig {
	return BootstrapConfig{
		AdminPhone:    "(14) 98136-4342",
		AdminName:     "admin original",
		AdminPassword: "s3cret!",
		Regions:       []string{"branca", "azul celeste"},
	}
}

func TestBootstrap_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New().Store()

	b := NewBootstrapper(st, seedConfig(), nil)
	require.NoError(t, b.Ensure(ctx))
	require.NoError(t, b.Ensure(ctx))
	require.NoError(t, NewBootstrapper(st, seedConfig(), nil).Ensure(ctx))

	n, err := st.Admins.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := st.Attendees.FindByPhone(ctx, "14981364342")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "ADMIN ORIGINAL", a.Name)
	admin, err := st.Admins.FindByAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.IsOriginal)

	regions, err := st.Regions.List(ctx)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "AZUL CELESTE", regions[0].Name)
}

// racingAttendees misses the first lookup and loses the insert to another instance.
type racingAttendees struct {
	store.Attendees
	lookups int
}

func (r *racingAttendees) FindByPhone(ctx context.Context, phone string) (*models.Attendee, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, nil
	}
	return r.Attendees.FindByPhone(ctx, phone)
}

func (r *racingAttendees) Create(ctx context.Context, a *models.Attendee) error {
	winner := &models.Attendee{Phone: a.Phone, Name: "OUTRA INSTANCIA"}
	if err := r.Attendees.Create(ctx, winner); err != nil {
		return err
	}
	return apperr.ErrConflict
}

func TestBootstrap_AdoptsConcurrentAttendee(t *testing.T) {
	ctx := context.Background()
	st := memory.New().Store()
	st.Attendees = &racingAttendees{Attendees: st.Attendees}

	require.NoError(t, NewBootstrapper(st, seedConfig(), nil).Ensure(ctx))

	a, err := st.Attendees.FindByPhone(ctx, "14981364342")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "OUTRA INSTANCIA", a.Name)
	admin, err := st.Admins.FindByAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.IsOriginal)
}

func TestBootstrap_SkipsWhenAdminsExist(t *testing.T) {
	ctx := context.Background()
	st := memory.New().Store()
	other := &models.Attendee{Phone: "5511999990000", Name: "OUTRO"}
	require.NoError(t, st.Attendees.Create(ctx, other))
	require.NoError(t, st.Admins.Create(ctx, &models.Admin{AttendeeID: other.ID, PasswordHash: "x"}))

	require.NoError(t, NewBootstrapper(st, seedConfig(), nil).Ensure(ctx))
	a, err := st.Attendees.FindByPhone(ctx, "14981364342")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestBootstrap_RequiresCredentials(t *testing.T) {
	cfg := seedConfig()
	cfg.AdminPassword = ""
	err := NewBootstrapper(memory.New().Store(), cfg, nil).Ensure(context.Background())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func newAuthRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New().Store()
	require.NoError(t, NewBootstrapper(st, seedConfig(), nil).Ensure(context.Background()))

	h := NewHandler(st.Attendees, st.Admins, NewJWTService("secret", 1), nil)
	r := gin.New()
	r.POST("/admin/login", h.Login)
	r.POST("/admin/admins", h.Grant)
	return r, st
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Login(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := post(r, "/admin/login", `{"phone":"14 98136 4342","password":"s3cret!"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)
	assert.Equal(t, RoleOriginal, body.Data.Role)

	w = post(r, "/admin/login", `{"phone":"14981364342","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/admin/login", `{"phone":"11000000000","password":"s3cret!"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/admin/login", `{"phone":"--","password":"s3cret!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Grant(t *testing.T) {
	r, st := newAuthRouter(t)
	ctx := context.Background()
	a := &models.Attendee{Phone: "5511988887777", Name: "BIA"}
	require.NoError(t, st.Attendees.Create(ctx, a))

	w := post(r, "/admin/admins", `{"attendee_id":"`+a.ID.String()+`","password":"123456"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = post(r, "/admin/admins", `{"attendee_id":"`+a.ID.String()+`","password":"123456"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/admin/login", `{"phone":"5511988887777","password":"123456"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)

	w = post(r, "/admin/admins", `{"attendee_id":"`+uuid.NewString()+`","password":"123456"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
