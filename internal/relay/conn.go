package relay

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dannyswat/vcursor"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// conn is one websocket participant connection.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	seen map[string]bool
	left map[string]bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		seen: make(map[string]bool),
		left: make(map[string]bool),
	}
}

func (c *conn) enqueue(buf []byte) bool {
	select {
	case c.send <- buf:
		return true
	default:
		return false
	}
}

// observe records which participants speak over this connection.
func (c *conn) observe(m vcursor.Message) {
	id := m.Sender()
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.Type == vcursor.MsgParticipantLeft {
		c.left[id] = true
		return
	}
	c.seen[id] = true
	delete(c.left, id)
}

func (c *conn) departures() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id := range c.seen {
		if !c.left[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (c *conn) readPump(handle func(vcursor.Message)) {
	defer c.ws.Close()
	c.ws.SetReadLimit(maxMessageSize)
	for {
		mt, p, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed unexpectedly", "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m, err := vcursor.DecodeMessage(p)
		if err != nil {
			slog.Warn("dropping undecodable message", "err", err)
			continue
		}
		handle(m)
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for buf := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
			// Unblocks readPump, whose exit closes send.
			_ = c.ws.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
