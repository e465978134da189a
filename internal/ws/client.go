package ws

import (
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long one slow console subscriber may stall the
// hub's broadcast loop.
const writeWait = 10 * time.Second

// Client adapts a websocket connection to the hub's Subscriber interface.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewClient wraps an upgraded connection for report streaming.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send writes one report event to the subscriber. A write error or a
// missed deadline drops the connection; the hub prunes it on return.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("report stream send failed", "remote", c.conn.RemoteAddr().String(), "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection after a best-effort close frame.
func (c *Client) Close() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
