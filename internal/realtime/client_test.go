package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWsServer(t *testing.T, hub *Hub, adminID uuid.UUID) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validate := func(token string) (string, error) {
		if token != "good" {
			return "", errors.New("bad token")
		}
		return adminID.String(), nil
	}
	r := gin.New()
	r.GET("/ws", ServeWs(hub, zap.NewNop(), validate))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServeWsStreamsRoomEvents(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	srv := newWsServer(t, hub, uuid.New())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "event_id="+eventID.String()+"&token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, EventViewerCount, msg.Event)
	assert.JSONEq(t, `{"count":1}`, string(msg.Data))

	require.NoError(t, hub.Publish(context.Background(), eventID, EventAttendanceConfirmed, map[string]string{"name": "ANA"}))
	msg = readMessage(t, conn)
	assert.Equal(t, EventAttendanceConfirmed, msg.Event)
	assert.JSONEq(t, `{"name":"ANA"}`, string(msg.Data))

	require.NoError(t, hub.Publish(context.Background(), uuid.New(), EventAttendanceConfirmed, nil))
	require.NoError(t, hub.Publish(context.Background(), eventID, EventAttendanceDeleted, nil))
	assert.Equal(t, EventAttendanceDeleted, readMessage(t, conn).Event)
}

func TestServeWsRejectsBeforeUpgrade(t *testing.T) {
	srv := newWsServer(t, NewHub(nil, nil, nil), uuid.New())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing event", "token=good", http.StatusBadRequest},
		{"bad event", "event_id=nope&token=good", http.StatusBadRequest},
		{"bad token", "event_id=" + uuid.NewString() + "&token=bad", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
