package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Snapshot is the status frame pushed to live clients.
type Snapshot struct {
	State     string           `json:"state"`
	Collected int              `json:"collected"`
	Stats     map[string]int64 `json:"stats"`
	Run       *Run             `json:"run,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The control page is served from the same listener.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive pushes a Snapshot every liveInterval until the client goes away
// or the server shuts down.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Client frames are ignored; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.liveInterval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.snapshot()); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("live write failed", "error", err)
			}
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.runCtx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		State:     s.ctrl.State().String(),
		Collected: s.ctrl.Count(),
		Stats:     s.ctrl.Stats(),
	}
	s.runsMu.RLock()
	if n := len(s.runs); n > 0 {
		cp := *s.runs[n-1]
		snap.Run = &cp
	}
	s.runsMu.RUnlock()
	return snap
}
