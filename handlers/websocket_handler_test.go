package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/avoronkov/fieldside/live"
)

type wsTestEnv struct {
	server     *httptest.Server
	controller *live.LiveMatchController
}

func newWebSocketTestServer(t *testing.T) *wsTestEnv {
	t.Helper()

	matches := &memoryMatchSource{matches: map[int]live.MatchInfo{
		7: {ID: 7, HomeTeamID: 100, AwayTeamID: 200},
	}}
	rosters := &memoryRosterSource{rosters: map[int][]live.RosterEntry{
		100: {{PlayerID: 1, JerseyNumber: 9, Position: "FW"}},
		200: {{PlayerID: 2, JerseyNumber: 10, Position: "MF"}},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := live.NewHub(logger)
	go hub.Run()

	controller := live.NewLiveMatchController(live.ControllerConfig{
		Store:       live.NewMatchStatsStore(),
		Broadcaster: hub,
		Matches:     matches,
		Rosters:     rosters,
		Stats:       newMemoryStatWriter(),
		Logger:      logger,
		FlushWindow: 20 * time.Millisecond,
	})
	t.Cleanup(func() {
		controller.Shutdown(context.Background())
	})

	handler := NewWebSocketHandler(hub, controller, logger)
	router := chi.NewRouter()
	router.Get("/ws/matches/{matchID}", handler.Serve)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &wsTestEnv{server: server, controller: controller}
}

func dialMatchFeed(t *testing.T, server *httptest.Server, matchID int) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + fmt.Sprintf("/ws/matches/%d", matchID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing match feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type feedEvent struct {
	Type    live.EventType  `json:"type"`
	MatchID int             `json:"match_id"`
	Payload json.RawMessage `json:"payload"`
}

// readFeedEvents reads one websocket frame and splits the batched
// newline-separated events it may carry.
func readFeedEvents(t *testing.T, conn *websocket.Conn) []feedEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading feed frame: %v", err)
	}

	var events []feedEvent
	for _, raw := range strings.Split(string(frame), "\n") {
		if raw == "" {
			continue
		}
		var ev feedEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("unmarshaling feed event %q: %v", raw, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestMatchFeedSendsSnapshotFirst(t *testing.T) {
	env := newWebSocketTestServer(t)
	ctx := context.Background()

	if _, err := env.controller.StartMatch(ctx, 7); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	goals := 2
	if _, err := env.controller.UpdatePlayerStat(ctx, 7, 1, live.PlayerStatFields{Goals: &goals}); err != nil {
		t.Fatalf("UpdatePlayerStat: %v", err)
	}

	conn := dialMatchFeed(t, env.server, 7)

	// The very first event must be the full snapshot, current as of the
	// join, so every later diff applies cleanly on top of it.
	events := readFeedEvents(t, conn)
	if events[0].Type != live.EventSnapshot {
		t.Fatalf("first event type = %q, want %q", events[0].Type, live.EventSnapshot)
	}
	var state live.MatchState
	if err := json.Unmarshal(events[0].Payload, &state); err != nil {
		t.Fatalf("unmarshaling snapshot payload: %v", err)
	}
	if state.Lifecycle != live.LifecycleLive {
		t.Errorf("snapshot lifecycle = %q, want %q", state.Lifecycle, live.LifecycleLive)
	}
	if state.Players[1].Goals != 2 {
		t.Errorf("snapshot goals for player 1 = %d, want 2", state.Players[1].Goals)
	}

	// Diffs published after the join arrive behind the snapshot.
	if _, err := env.controller.UpdateScore(ctx, 7, 1, 0); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("score diff never arrived on the feed")
		}
		for _, ev := range readFeedEvents(t, conn) {
			if ev.Type == live.EventScoreUpdated {
				return
			}
		}
	}
}

func TestMatchFeedDeliversFinalEventThenCloses(t *testing.T) {
	env := newWebSocketTestServer(t)
	ctx := context.Background()

	if _, err := env.controller.StartMatch(ctx, 7); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	conn := dialMatchFeed(t, env.server, 7)
	readFeedEvents(t, conn) // snapshot

	if err := env.controller.EndMatch(ctx, 7); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}

	// The viewer sees MATCH_ENDED and is then disconnected from the dead
	// room instead of lingering on it.
	sawEnded := false
	deadline := time.Now().Add(2 * time.Second)
	for !sawEnded {
		if time.Now().After(deadline) {
			t.Fatal("MATCH_ENDED never arrived on the feed")
		}
		for _, ev := range readFeedEvents(t, conn) {
			if ev.Type == live.EventMatchEnded {
				sawEnded = true
			}
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("feed still open after the match ended")
	}
}

func TestMatchFeedRejectsUnknownMatchBeforeUpgrade(t *testing.T) {
	env := newWebSocketTestServer(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/matches/99"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded for an unknown match")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("handshake response = %+v, want 404", resp)
	}
}
