package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestLiveStatus(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(0, ctrl, testLogger)
	s.liveInterval = 10 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.State != "idle" || snap.Collected != 0 || snap.Run != nil {
		t.Errorf("unexpected first snapshot %+v", snap)
	}
	if snap.Stats["posts_scraped"] != 1 {
		t.Errorf("missing stats in %+v", snap)
	}

	if _, err := ctrl.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	for snap.Collected != 1 {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read: %v", err)
		}
	}

	// Shutdown closes live connections.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	for {
		if err := conn.ReadJSON(&snap); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("expected going-away close, got %v", err)
			}
			break
		}
	}
}
