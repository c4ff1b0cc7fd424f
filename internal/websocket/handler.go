package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"thientam/internal/httpx"
	"thientam/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMessage = 512
)

// Upgrader builds the websocket upgrader for the allowed origins; "*" or an
// empty list accepts any origin.
func Upgrader(origins []string) websocket.Upgrader {
	allowAll := len(origins) == 0
	allowed := map[string]bool{}
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// HandleWebSocket upgrades GET /ws and subscribes the connection to hub events.
func HandleWebSocket(hub *Hub, up websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			httpx.Log(c).Warn("websocket upgrade", "err", err)
			return
		}
		cl := &client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			remote: c.ClientIP(),
		}
		if !hub.join(cl) {
			conn.Close()
			return
		}

		go cl.writePump()
		go cl.readPump()
	}
}

// readPump chỉ đọc để nhận pong và phát hiện client đóng kết nối
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read", "err", err, "remote", c.remote)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type notifyRequest struct {
	Message string `json:"message" binding:"required,min=1,max=500"`
	Title   string `json:"title" binding:"max=200"`
}

// HandleNotify broadcasts an admin announcement: POST {message, title?}.
func HandleNotify(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Invalid(c, err)
			return
		}
		ev := models.Event{
			Type:      "announcement",
			Title:     strings.TrimSpace(req.Title),
			Message:   strings.TrimSpace(req.Message),
			Timestamp: time.Now().Unix(),
		}
		hub.Publish(ev)
		httpx.Log(c).Info("announcement published", "clients", hub.Clients())
		c.JSON(http.StatusAccepted, gin.H{"message": "Đã gửi thông báo", "clients": hub.Clients()})
	}
}
