package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"server/internal/domain"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// Buffered per-connection queue. A client that cannot keep up loses
	// intermediate events and reconciles through the snapshot read path.
	wsEventBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamOrderEvents handles GET /v1/orders/{id}/events. It upgrades to a
// WebSocket and pushes every status transition of the order. The first frame
// is a snapshot of the current state so late subscribers start reconciled.
func (a *App) StreamOrderEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := a.Broadcaster.CurrentState(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "order not found")
			return
		}
		a.Logger.Error().Err(err).Str("order_id", id).Msg("api: event stream snapshot failed")
		a.jsonError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		a.Logger.Debug().Err(err).Str("order_id", id).Msg("api: websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan domain.StatusEvent, wsEventBuffer)
	unsubscribe := a.Broadcaster.SubscribeOrder(id, func(ev domain.StatusEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeEvent := func(ev domain.StatusEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			a.Logger.Debug().Err(err).Str("order_id", id).Msg("api: websocket write failed")
			return false
		}
		return true
	}

	if !writeEvent(domain.EventForOrder(snapshot)) {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case ev := <-events:
			if !writeEvent(ev) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
