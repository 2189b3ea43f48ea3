package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/myselfprincee/vido-backend/internal/coordinator"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement belongs to the reverse proxy in deployment.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades signaling connections and pumps their events into the
// coordinator. One goroutine per connection reads frames; the heartbeat
// ticker runs alongside it.
type Handler struct {
	coordinator  *coordinator.Coordinator
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler bound to the coordinator.
func NewHandler(coord *coordinator.Coordinator, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		coordinator:  coord,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket upgrades the request and attaches the connection to the
// coordinator. A `resume` query parameter reattaches a transport suspended
// inside the reconnection grace window; if no suspension is pending the id
// is ignored and the connection starts fresh with a minted id.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	resumeID := r.URL.Query().Get("resume")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// The client-supplied id is adopted only once the coordinator confirms
	// a suspension is pending for it; a stale or live id never binds.
	if resumeID != "" && h.coordinator.ClaimSuspension(resumeID) {
		wsConn := NewConnection(conn, resumeID)
		h.coordinator.Reattach(wsConn)
		go h.handleConnection(wsConn)
		return
	}

	wsConn := NewConnection(conn, "")
	if !h.coordinator.Connect(wsConn) {
		_ = wsConn.Close()
		return
	}
	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat until the transport
// drops, then reports the implicit disconnect to the coordinator.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.coordinator.Disconnecting(conn.ID())
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: conn=%s err=%v", conn.ID(), err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// One unparseable frame never terminates the connection.
			log.Printf("Dropping malformed frame: conn=%s err=%v", conn.ID(), err)
			continue
		}

		h.coordinator.HandleFrame(context.Background(), conn.ID(), frame)
	}
}
