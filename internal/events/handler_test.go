package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store/memory"
)

func TestHandler_EventLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := memory.New().Store()
	svc := NewService(st.Events, st.Meetings, func() civil.Date { return day(time.June, 1) })
	h := NewHandler(svc, st.Events, st.Meetings, nil)

	r := gin.New()
	r.GET("/admin/events", h.List)
	r.POST("/admin/events", h.Create)
	r.GET("/admin/events/:id", h.Get)
	r.PUT("/admin/events/:id", h.Update)
	r.DELETE("/admin/events/:id", h.Delete)
	r.POST("/admin/events/:id/meetings", h.CreateMeeting)
	r.PUT("/admin/meetings/:id", h.UpdateMeeting)
	r.DELETE("/admin/meetings/:id", h.DeleteMeeting)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/admin/events", `{"name":"retiro","start_date":"2025-06-01","end_date":"2025-06-30"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "RETIRO", created.Data.Name)
	eventPath := "/admin/events/" + created.Data.ID.String()

	w = do(http.MethodPost, "/admin/events", `{"name":"x","start_date":"2025-06-10","end_date":"2025-06-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(http.MethodPost, "/admin/events", `{"name":"x","start_date":"10/06/2025","end_date":"2025-06-30"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, eventPath+"/meetings", `{"title":"abertura","date":"2025-06-07"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var meeting struct {
		Data models.Meeting `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meeting))

	w = do(http.MethodPost, eventPath+"/meetings", `{"date":"2025-07-07"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(http.MethodPost, "/admin/events/"+uuid.NewString()+"/meetings", `{"date":"2025-06-07"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodPut, "/admin/meetings/"+meeting.Data.ID.String(), `{"title":"encerramento","date":"2025-06-28","is_special":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodGet, eventPath, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ENCERRAMENTO")

	w = do(http.MethodPut, eventPath, `{"name":"retiro","start_date":"2025-06-01","end_date":"2025-06-20"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/admin/meetings/"+meeting.Data.ID.String(), "").Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, eventPath, "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, eventPath, "").Code)

	w = do(http.MethodGet, "/admin/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "RETIRO")
}
