package server

import (
	"net/http"
	"sync"

	"tunevault/core/session"
	"tunevault/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusHub pushes session snapshots to websocket observers. One set of
// connections per session id; a snapshot is written on every queue or
// state transition.
type StatusHub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{conns: make(map[string]map[*websocket.Conn]bool)}
}

// HandleWS upgrades the request and registers the observer. The initial
// snapshot is the caller's responsibility via Broadcast on change; a just
// connected observer simply waits for the next transition.
func (h *StatusHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.conns[sessionID][conn] = true
	h.mu.Unlock()

	logger.Debug("status observer connected", logger.String("sessionId", sessionID))

	// Drain reads so pings and close frames are processed; drop the
	// connection on any read error.
	go func() {
		defer h.drop(sessionID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast writes the snapshot to every observer of its session.
// Failed writes drop the observer.
func (h *StatusHub) Broadcast(snapshot session.Snapshot) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns[snapshot.SessionID]))
	for conn := range h.conns[snapshot.SessionID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(snapshot); err != nil {
			h.drop(snapshot.SessionID, conn)
		}
	}
}

func (h *StatusHub) drop(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	if observers, ok := h.conns[sessionID]; ok {
		delete(observers, conn)
	}
	h.mu.Unlock()
	conn.Close()
}
