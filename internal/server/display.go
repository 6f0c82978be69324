package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/session"
)

const (
	writeWait    = 5 * time.Second
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DisplayMessage is one message on the /api/display feed.
type DisplayMessage struct {
	Type       string              `json:"type"` // "display", "transition" or "status"
	Output     *session.Output     `json:"output,omitempty"`
	Transition *session.Transition `json:"transition,omitempty"`
	Status     *session.Snapshot   `json:"status,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

type displayClient struct {
	send chan []byte
}

// DisplayHub pushes display updates to websocket clients. A client that
// falls behind loses messages instead of stalling the pipeline.
type DisplayHub struct {
	mu      sync.RWMutex
	clients map[*displayClient]struct{}
	last    []byte
	logger  *zap.Logger
}

// NewDisplayHub creates an empty hub.
func NewDisplayHub(logger *zap.Logger) *DisplayHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisplayHub{
		clients: make(map[*displayClient]struct{}),
		logger:  logger,
	}
}

// PublishOutput broadcasts the current display output. New clients receive
// the latest one on connect.
func (h *DisplayHub) PublishOutput(out session.Output) {
	h.broadcast(DisplayMessage{Type: "display", Output: &out}, true)
}

// PublishTransition broadcasts a committed transition.
func (h *DisplayHub) PublishTransition(t session.Transition) {
	h.broadcast(DisplayMessage{Type: "transition", Transition: &t}, false)
}

// PublishStatus broadcasts a lifecycle change.
func (h *DisplayHub) PublishStatus(snap session.Snapshot) {
	h.broadcast(DisplayMessage{Type: "status", Status: &snap}, false)
}

// Clients returns the number of connected clients.
func (h *DisplayHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *DisplayHub) broadcast(msg DisplayMessage, remember bool) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to encode display message", zap.Error(err))
		return
	}

	if remember {
		h.mu.Lock()
		h.last = data
		h.mu.Unlock()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DisplayHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &displayClient{send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range c.send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	conn.Close()
	<-done
}
