package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait = 10 * time.Second
	// ReadWait bounds client silence; server pings keep a healthy client inside it.
	ReadWait   = 60 * time.Second
	pingPeriod = ReadWait / 2
)

// Conn wraps a gorilla connection for one session. Gorilla allows a single
// concurrent writer while the session timer and the read loop both emit events,
// so every write goes through mu.
type Conn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

// NewConn wraps conn. Pongs extend the read deadline.
func NewConn(conn *websocket.Conn, log zerolog.Logger) *Conn {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ReadWait))
	})
	return &Conn{conn: conn, log: log}
}

// Send writes a typed payload. Write failures are logged; the read loop
// notices the broken connection.
func (c *Conn) Send(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.log.Debug().Err(err).Msg("Write failed")
	}
}

// SendError writes an ErrorResponse.
func (c *Conn) SendError(err error) {
	c.Send(ErrorResponse{Event: EventError, Error: err.Error()})
}

// Close sends a normal closure frame with reason. The caller still closes the
// underlying connection.
func (c *Conn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// Read decodes the next client message.
func (c *Conn) Read(v interface{}) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadWait))
	return c.conn.ReadJSON(v)
}

// KeepAlive pings the client until ctx is done or a ping fails.
func (c *Conn) KeepAlive(ctx context.Context) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
