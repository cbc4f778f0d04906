package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is one websocket peer. Frames queued through Enqueue are
// written in FIFO order by writePump, the only writer on rawConn.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClientConn(id string, rawConn *websocket.Conn, buffer int) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: rawConn,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

func (c *clientConn) ID() string { return c.id }

// Enqueue never blocks. A full queue means the peer cannot keep up, so the
// connection is closed and its disconnect runs through the reader.
func (c *clientConn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		zap.L().Warn("ws.slow_consumer", zap.String("conn", c.id), zap.Int("queued", len(c.send)))
		c.close()
		return false
	}
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.rawConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
