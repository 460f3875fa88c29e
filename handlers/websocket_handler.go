package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/avoronkov/fieldside/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin viewers are allowed; the live feed is public.
		return true
	},
}

// WebSocketHandler attaches viewers to a match room. A joining client is
// sent the full match snapshot first, then receives incremental events.
type WebSocketHandler struct {
	hub        *live.Hub
	controller *live.LiveMatchController
	logger     *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, controller *live.LiveMatchController, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, controller: controller, logger: logger}
}

func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Resolve the match before upgrading so a bad id still gets a proper
	// HTTP status instead of a dropped socket.
	if _, err := h.controller.Snapshot(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		MatchID: matchID,
	}

	// Take the snapshot right before queueing it, and queue it before the
	// client joins the room. The handler still owns the send channel here,
	// so the snapshot is guaranteed to be the first frame and no diff
	// published during the join can land in front of an older full state.
	state, err := h.controller.Snapshot(r.Context(), matchID)
	if err != nil {
		h.logger.Warn("match state gone before websocket join",
			slog.Int("match_id", matchID), slog.Any("error", err))
		conn.Close()
		return
	}
	snapshot := live.Event{
		Type:    live.EventSnapshot,
		MatchID: matchID,
		Payload: state,
	}
	if data, err := json.Marshal(snapshot); err == nil {
		client.Send <- data
	} else {
		h.logger.Error("failed to marshal match snapshot",
			slog.Int("match_id", matchID), slog.Any("error", err))
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
