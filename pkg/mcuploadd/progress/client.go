package progress

import (
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
)

const (
	MsgConnected      = "CONNECTED"
	MsgUploadProgress = "UPLOAD_PROGRESS"
	MsgUploadComplete = "UPLOAD_COMPLETE"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

type Message struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Client is one websocket connection. Clients only listen, anything they
// send other than control frames is dropped.
type Client struct {
	ID     string
	UserID int
	conn   *websocket.Conn
	send   chan Message
	hub    *Hub
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("Progress client %s closed: %s", c.ID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
