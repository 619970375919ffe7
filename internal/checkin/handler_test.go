package checkin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca/backend/internal/admission"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *models.Region) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	st := memory.New().Store()

	region, err := st.Regions.Create(ctx, "SUL")
	require.NoError(t, err)
	ev := models.Event{Name: "E", StartDate: civil.Date{Year: 2025, Month: 1, Day: 1}, EndDate: civil.Date{Year: 2025, Month: 12, Day: 31}}
	require.NoError(t, st.Events.Create(ctx, &ev))
	m := models.Meeting{EventID: ev.ID, Date: civil.Date{Year: 2025, Month: 6, Day: 10}}
	require.NoError(t, st.Meetings.Create(ctx, &m))
	_, err = st.Tokens.Issue(ctx, m.ID, "abc")
	require.NoError(t, err)
	require.NoError(t, st.Attendees.Create(ctx, &models.Attendee{Phone: "5511999990000", Name: "ANA", RegionID: &region.ID}))

	now := func() time.Time { return time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC) }
	h := NewHandler(NewProcessor(st, admission.NewGate(time.UTC), nil, nil, nil), now, nil)

	r := gin.New()
	r.GET("/scan/:token", h.Inspect)
	r.POST("/scan/:token", h.CheckIn)
	r.POST("/register/:token", h.Register)
	r.POST("/api/attendance", h.API)
	return r, region
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func outcomeOf(t *testing.T, env envelope) Outcome {
	t.Helper()
	var v struct {
		Outcome     Outcome `json:"outcome"`
		RegisterURL string  `json:"register_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v.Outcome
}

func TestScanEndpoints(t *testing.T) {
	r, region := newTestRouter(t)

	t.Run("inspect open token", func(t *testing.T) {
		w, env := do(r, http.MethodGet, "/scan/abc", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, StatusOpen, outcomeOf(t, env).Status)
	})

	t.Run("unknown token is 404", func(t *testing.T) {
		w, env := do(r, http.MethodGet, "/scan/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("check-in confirms then reports presence", func(t *testing.T) {
		_, env := do(r, http.MethodPost, "/scan/abc", `{"phone":"+55 11 99999-0000"}`)
		assert.Equal(t, StatusConfirmed, outcomeOf(t, env).Status)
		_, env = do(r, http.MethodPost, "/scan/abc", `{"phone":"5511999990000"}`)
		assert.Equal(t, StatusAlreadyPresent, outcomeOf(t, env).Status)
	})

	t.Run("empty phone is 400", func(t *testing.T) {
		w, _ := do(r, http.MethodPost, "/scan/abc", `{"phone":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown phone links to registration", func(t *testing.T) {
		_, env := do(r, http.MethodPost, "/scan/abc", `{"phone":"11 3333-4444"}`)
		var v map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(env.Data, &v))
		assert.JSONEq(t, `"/register/abc?phone=1133334444"`, string(v["register_url"]))
	})

	t.Run("register creates attendee", func(t *testing.T) {
		body := `{"phone":"1133334444","name":"Bia","region_id":"` + region.ID.String() + `"}`
		w, env := do(r, http.MethodPost, "/register/abc", body)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, StatusConfirmed, outcomeOf(t, env).Status)
	})

	t.Run("register without region is 400", func(t *testing.T) {
		w, _ := do(r, http.MethodPost, "/register/abc", `{"phone":"1144445555","name":"Caio"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("api check-in", func(t *testing.T) {
		w, env := do(r, http.MethodPost, "/api/attendance", `{"token":"abc","phone":"5511999990000"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out Outcome
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, StatusAlreadyPresent, out.Status)
	})
}
