package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one websocket viewer attached to a match room.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	MatchID int

	mu     sync.Mutex
	closed bool
}

// Hub fans out live match events to websocket viewers, one room per match.
// It implements Broadcaster; viewers are attached by the websocket handler
// via Register and detached on disconnect.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu     sync.RWMutex
	rooms  map[int]map[*Client]bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.MatchID]; !ok {
				h.rooms[client.MatchID] = make(map[*Client]bool)
			}
			h.rooms[client.MatchID][client] = true
			h.logger.Info("viewer joined match room",
				slog.Int("match_id", client.MatchID),
				slog.Int("viewers", len(h.rooms[client.MatchID])))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.MatchID]; ok {
				if _, inRoom := room[client]; inRoom {
					client.markClosed()
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.MatchID)
					}
					h.logger.Info("viewer left match room",
						slog.Int("match_id", client.MatchID),
						slog.Int("viewers", len(room)))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements Broadcaster. Delivery is best-effort: a viewer whose
// send buffer is full misses the event instead of blocking the room.
func (h *Hub) Publish(matchID int, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal live event",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[matchID] {
		if !client.trySend(data) {
			h.logger.Warn("viewer send buffer full, dropping event",
				slog.Int("match_id", matchID), slog.String("type", string(event.Type)))
		}
	}
}

// CloseMatch disconnects every viewer of an ended match's room. Frames
// already queued on a viewer, the final event included, are still flushed
// by its write pump before the socket closes.
func (h *Hub) CloseMatch(matchID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[matchID] {
		client.markClosed()
	}
	delete(h.rooms, matchID)
}

// RoomSize is a test hook reporting how many viewers a match room has.
func (h *Hub) RoomSize(matchID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) markClosed() {
	c.mu.Lock()
	if !c.closed {
		close(c.Send)
		c.closed = true
	}
	c.mu.Unlock()
}

// ReadPump drains (and ignores) incoming frames so pong handling works, and
// unregisters the client when the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump forwards queued events to the socket and keeps the connection
// alive with pings. Queued events are batched into a single frame write.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
