package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_Broadcast(t *testing.T) {
	h := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				h.Unregister(conn)
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	h.Broadcast(AuditEvent{Type: "statement", DBID: "main", SQL: "SELECT 1", Status: "success", Rows: 1})

	var got AuditEvent
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.DBID != "main" || got.SQL != "SELECT 1" || got.Status != "success" {
		t.Errorf("unexpected event %+v", got)
	}

	h.Close()
	if h.Count() != 0 {
		t.Error("Close should drop all subscribers")
	}
}
