package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sebastos1/aa/internal/platform/timeouts"
	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/prefs"
)

const (
	liveTypeState       = "state"
	liveTypePreferences = "preferences"

	liveSendBuffer = 32
	liveReadLimit  = 512
)

// liveMessage is pushed to browsers. It only says what changed; clients
// fetch /api/state for the data.
type liveMessage struct {
	Type        string             `json:"type"`
	Version     uint64             `json:"version,omitempty"`
	Players     []model.UUID       `json:"players,omitempty"`
	Preferences *prefs.Preferences `json:"preferences,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans messages out to connected browsers. Slow clients lose messages
// rather than stall state commits.
type hub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[*liveClient]struct{})}
}

func (h *hub) add(c *liveClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) remove(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) broadcastJSON(msg liveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("dashboard: encode live message: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: live upgrade: %v", err)
		return
	}
	c := &liveClient{conn: conn, send: make(chan []byte, liveSendBuffer)}

	version := uint64(0)
	if s.deps.Mirror != nil {
		version = s.deps.Mirror.Version()
	}
	hello, _ := json.Marshal(liveMessage{Type: liveTypeState, Version: version})
	c.send <- hello

	if !s.hub.add(c) {
		_ = conn.Close()
		return
	}
	go c.writer()
	c.reader()
	s.hub.remove(c)
}

// reader discards inbound messages; the channel is server to browser only.
func (c *liveClient) reader() {
	c.conn.SetReadLimit(liveReadLimit)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeouts.LiveWrite))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeouts.LiveWrite))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
