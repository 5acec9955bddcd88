package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"server/internal/domain"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestStreamOrderEventsSnapshotAndUpdates(t *testing.T) {
	api := newTestAPI(t)
	created := api.createOrder(t, `{"user_id":"u1","service_id":"seo-article","parameters":{"topic":"x"}}`)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(api.server.URL, "/v1/orders/"+created.ID+"/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	// The first frame is always the current snapshot.
	var snapshot domain.StatusEvent
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.OrderID != created.ID || snapshot.Status != domain.OrderStatusQueued {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	api.drain(t)

	// Drive the order to completion and confirm the terminal event arrives.
	// Intermediate frames may be dropped under buffer pressure; completion
	// must not be missed here because the client keeps reading.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev domain.StatusEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Status == domain.OrderStatusCompleted {
			if ev.OrderID != created.ID {
				t.Fatalf("completed event for wrong order: %+v", ev)
			}
			return
		}
		if ev.Status.IsTerminal() {
			t.Fatalf("unexpected terminal status %s", ev.Status)
		}
	}
}

func TestStreamOrderEventsUnknownOrder(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.server.URL + "/v1/orders/nope/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
