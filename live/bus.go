package live

import "sync"

type EventType string

const (
	EventMatchStarted  EventType = "MATCH_STARTED"
	EventMatchPaused   EventType = "MATCH_PAUSED"
	EventMatchResumed  EventType = "MATCH_RESUMED"
	EventMatchEnded    EventType = "MATCH_ENDED"
	EventScoreUpdated  EventType = "SCORE_UPDATED"
	EventPlayerUpdated EventType = "PLAYER_STAT_UPDATED"
	EventClockTick     EventType = "CLOCK_TICK"
	EventSnapshot      EventType = "MATCH_SNAPSHOT"
)

// Event is the envelope fanned out to every subscriber of a match.
type Event struct {
	Type    EventType `json:"type"`
	MatchID int       `json:"match_id"`
	Payload any       `json:"payload,omitempty"`
}

// ScorePayload is the diff published on a score correction.
type ScorePayload struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// ClockPayload is the coalesced clock diff.
type ClockPayload struct {
	ClockSeconds int `json:"clock_seconds"`
}

// Broadcaster delivers state-change events to everyone watching a match.
// Delivery is best-effort: a disconnected or slow subscriber simply misses
// the event and re-reads the full snapshot on its next page load. CloseMatch
// detaches every watcher of an ended match after its final event.
type Broadcaster interface {
	Publish(matchID int, event Event)
	CloseMatch(matchID int)
}

// EventBus is an in-process Broadcaster with explicit per-subscriber
// channels, keyed by match id. It backs tests and any in-process consumer;
// the websocket Hub covers the wire transport.
type EventBus struct {
	mu   sync.RWMutex
	subs map[int]map[string]chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[int]map[string]chan Event),
	}
}

// Subscribe registers subscriberID for the match and returns its event
// channel. Subscribing twice with the same id returns the existing channel.
func (b *EventBus) Subscribe(matchID int, subscriberID string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[matchID] == nil {
		b.subs[matchID] = make(map[string]chan Event)
	}
	if ch, ok := b.subs[matchID][subscriberID]; ok {
		return ch
	}
	ch := make(chan Event, 32)
	b.subs[matchID][subscriberID] = ch
	return ch
}

// Unsubscribe removes the subscriber. Safe to call repeatedly and after the
// match ended.
func (b *EventBus) Unsubscribe(matchID int, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[matchID]
	if !ok {
		return
	}
	if ch, ok := subs[subscriberID]; ok {
		delete(subs, subscriberID)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subs, matchID)
	}
}

// Publish delivers the event to every current subscriber of the match.
// Slow subscribers are skipped rather than blocking the publisher.
func (b *EventBus) Publish(matchID int, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[matchID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// CloseMatch drops every subscriber of an ended match. Events already
// buffered on a subscriber channel remain readable until it drains.
func (b *EventBus) CloseMatch(matchID int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[matchID] {
		close(ch)
	}
	delete(b.subs, matchID)
}
