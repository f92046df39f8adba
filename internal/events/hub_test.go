package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration races the dial return; retry the broadcast briefly.
	sent := Event{Type: TypeItemAdded, UserID: 1, Barcode: "1234", Title: "Beans", At: time.Now().UTC()}
	go func() {
		for i := 0; i < 50; i++ {
			hub.Broadcast(sent)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Event
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeItemAdded || got.Barcode != "1234" || got.Title != "Beans" {
		t.Fatalf("event = %+v", got)
	}
}

func TestBroadcastWithNoClientsIsSafe(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()
	hub.Broadcast(Event{Type: TypeInventoryUpdated, At: time.Now()})
}
