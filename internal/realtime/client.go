package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/presenca/backend/pkg/response"
)

const (
	viewerBuffer   = 64
	maxViewerFrame = 4096
)

// The dashboard is served from its own origin; the admin JWT in the query is the access check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSMessage is the envelope pushed to viewers.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one dashboard viewer watching an event room. Viewers only receive.
type Client struct {
	ID      string
	EventID uuid.UUID
	AdminID uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger
}

// TokenValidator checks an admin JWT and returns the admin id it was issued to.
type TokenValidator func(token string) (adminID string, err error)

// ServeWs handles GET /ws?event_id=&token=.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Query("event_id"))
		if err != nil {
			response.BadRequest(c, "event_id must be a uuid")
			return
		}
		subject, err := validate(c.Query("token"))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		adminID, err := uuid.Parse(subject)
		if err != nil {
			response.Unauthorized(c, "invalid token subject")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("event_id", eventID.String()), zap.Error(err))
			return
		}
		client := &Client{
			ID:      uuid.NewString(),
			EventID: eventID,
			AdminID: adminID,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, viewerBuffer),
			logger:  logger.With(zap.String("event_id", eventID.String()), zap.String("admin_id", subject)),
		}
		client.join()
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) join() {
	c.hub.Register(c)
	c.announceViewers()
}

func (c *Client) leave() {
	c.hub.Unregister(c)
	c.announceViewers()
	_ = c.conn.Close()
}

func (c *Client) announceViewers() {
	c.hub.Broadcast(c.EventID, EventViewerCount, map[string]int{"count": c.hub.ViewerCount(c.EventID)})
}

func (c *Client) extendDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// readPump drains control frames so pongs keep the connection alive; it returns once the
// viewer goes away.
func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxViewerFrame)
	_ = c.extendDeadline()
	c.conn.SetPongHandler(func(string) error { return c.extendDeadline() })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("viewer read failed", zap.Error(err))
			}
			return
		}
		_ = c.extendDeadline()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
