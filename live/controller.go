package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrScoreNotPersisted signals that a score correction took effect in memory
// and was broadcast, but the durable write failed. The caller surfaces a
// warning; the optimistic state remains authoritative for display.
var ErrScoreNotPersisted = errors.New("score updated in memory but not persisted")

// MatchInfo is the minimal match row the controller needs to seed and
// reconcile live state.
type MatchInfo struct {
	ID         int
	HomeTeamID int
	AwayTeamID int
	HomeScore  int
	AwayScore  int
	Completed  bool
}

// MatchSource resolves a match id to its teams and persisted score.
type MatchSource interface {
	LiveMatchInfo(ctx context.Context, matchID int) (MatchInfo, error)
}

// RosterSource lists the players of a team that get zeroed stat lines when
// a match is initialized.
type RosterSource interface {
	Roster(ctx context.Context, teamID int) ([]RosterEntry, error)
}

// StatWriter is the durable storage boundary. All three writes are
// idempotent on success (upserts).
type StatWriter interface {
	WritePlayerStat(ctx context.Context, matchID int, stat PlayerStat) error
	WriteScore(ctx context.Context, matchID, homeScore, awayScore int) error
	WriteFinalRecord(ctx context.Context, matchID, homeScore, awayScore, clockSeconds int, stats []PlayerStat) error
	LoadPlayerStats(ctx context.Context, matchID int) ([]PlayerStat, error)
	MarkLive(ctx context.Context, matchID int) error
}

// statWrite is the payload scheduled on the debounced persister.
type statWrite struct {
	matchID int
	stat    PlayerStat
}

func statKey(matchID, playerID int) string {
	return fmt.Sprintf("%d:%d", matchID, playerID)
}

func matchKeyPrefix(matchID int) string {
	return fmt.Sprintf("%d:", matchID)
}

// ControllerConfig wires a LiveMatchController. Zero durations and counts
// fall back to the defaults used in production.
type ControllerConfig struct {
	Store       *MatchStatsStore
	Broadcaster Broadcaster
	Matches     MatchSource
	Rosters     RosterSource
	Stats       StatWriter
	Logger      *slog.Logger

	FlushWindow    time.Duration // debounce window for counter writes
	RetryDelay     time.Duration // backoff before the single write retry
	ClockBroadcast int           // seconds of clock between clock-only diffs
}

// LiveMatchController is the single entry point for every externally
// triggered mutation of live match state. It sequences store writes,
// schedules persistence and publishes diffs; arrival order at the
// controller is the last-writer-wins order.
type LiveMatchController struct {
	store       *MatchStatsStore
	persister   *DebouncedPersister
	broadcaster Broadcaster
	matches     MatchSource
	rosters     RosterSource
	stats       StatWriter
	logger      *slog.Logger

	clockBroadcast int

	mu     sync.Mutex
	locks  map[int]*sync.Mutex
	clocks map[int]chan struct{}
}

func NewLiveMatchController(cfg ControllerConfig) *LiveMatchController {
	if cfg.FlushWindow <= 0 {
		cfg.FlushWindow = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.ClockBroadcast <= 0 {
		cfg.ClockBroadcast = 5
	}

	c := &LiveMatchController{
		store:          cfg.Store,
		broadcaster:    cfg.Broadcaster,
		matches:        cfg.Matches,
		rosters:        cfg.Rosters,
		stats:          cfg.Stats,
		logger:         cfg.Logger,
		clockBroadcast: cfg.ClockBroadcast,
		locks:          make(map[int]*sync.Mutex),
		clocks:         make(map[int]chan struct{}),
	}
	c.persister = NewDebouncedPersister(cfg.FlushWindow, cfg.RetryDelay, c.flushStat, cfg.Logger)
	return c
}

func (c *LiveMatchController) flushStat(ctx context.Context, _ string, payload any) error {
	w, ok := payload.(statWrite)
	if !ok {
		return fmt.Errorf("unexpected persister payload type %T", payload)
	}
	return c.stats.WritePlayerStat(ctx, w.matchID, w.stat)
}

// matchLock serializes controller operations per match id.
func (c *LiveMatchController) matchLock(matchID int) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[matchID] = lock
	}
	return lock
}

// notFoundReason distinguishes "the match ended and its live state was
// archived" from "nothing was ever initialized for this id".
func (c *LiveMatchController) notFoundReason(ctx context.Context, matchID int) error {
	info, err := c.matches.LiveMatchInfo(ctx, matchID)
	if err == nil && info.Completed {
		return ErrMatchEnded
	}
	return ErrMatchStateNotFound
}

// GetOrInitialize returns the live state for a match, constructing it from
// the match row, both rosters and any previously persisted partial stats if
// it does not exist yet. Concurrent callers racing on first initialization
// converge on one winner; losers read the winner's state.
func (c *LiveMatchController) GetOrInitialize(ctx context.Context, matchID int) (*MatchState, error) {
	if state, err := c.store.Get(matchID); err == nil {
		return state, nil
	}

	info, err := c.matches.LiveMatchInfo(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if info.Completed {
		return nil, ErrMatchEnded
	}

	var (
		homeRoster, awayRoster []RosterEntry
		prior                  []PlayerStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		homeRoster, err = c.rosters.Roster(gctx, info.HomeTeamID)
		return err
	})
	g.Go(func() error {
		var err error
		awayRoster, err = c.rosters.Roster(gctx, info.AwayTeamID)
		return err
	})
	g.Go(func() error {
		var err error
		prior, err = c.stats.LoadPlayerStats(gctx, matchID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("seeding live state for match %d: %w", matchID, err)
	}

	if _, err := c.store.Initialize(matchID, info.HomeTeamID, info.AwayTeamID, homeRoster, awayRoster); err != nil {
		if errors.Is(err, ErrAlreadyInitialized) {
			return c.store.Get(matchID)
		}
		return nil, err
	}

	if len(prior) > 0 || info.HomeScore > 0 || info.AwayScore > 0 {
		// Best-effort resume after a restart: the clock is reconstructed
		// from the longest persisted playing time. The restored match waits
		// in not-started until an operator starts it again.
		clock := 0
		for _, stat := range prior {
			if stat.TimePlayed > clock {
				clock = stat.TimePlayed
			}
		}
		if err := c.store.Restore(matchID, info.HomeScore, info.AwayScore, clock, prior); err != nil {
			c.logger.Warn("could not restore persisted live stats",
				slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}

	return c.store.Get(matchID)
}

// StartMatch moves a match to live, starts the clock and announces it.
func (c *LiveMatchController) StartMatch(ctx context.Context, matchID int) (*MatchState, error) {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := c.GetOrInitialize(ctx, matchID); err != nil {
		return nil, err
	}
	if err := c.store.TransitionLifecycle(matchID, LifecycleLive); err != nil {
		return nil, err
	}
	c.startClock(matchID)

	// Best-effort row update so fixture listings reflect the match going
	// live; the in-memory lifecycle stays authoritative either way.
	if err := c.stats.MarkLive(ctx, matchID); err != nil {
		c.logger.Warn("could not mark match row live", slog.Int("match_id", matchID), slog.Any("error", err))
	}

	state, err := c.store.Get(matchID)
	if err != nil {
		return nil, err
	}
	c.broadcaster.Publish(matchID, Event{Type: EventMatchStarted, MatchID: matchID, Payload: state})
	c.logger.Info("match went live", slog.Int("match_id", matchID))
	return state, nil
}

// PauseMatch suspends the clock without ending the match.
func (c *LiveMatchController) PauseMatch(ctx context.Context, matchID int) error {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.transitionOrExplain(ctx, matchID, LifecyclePaused); err != nil {
		return err
	}
	c.stopClock(matchID)

	state, _ := c.store.Get(matchID)
	c.broadcaster.Publish(matchID, Event{Type: EventMatchPaused, MatchID: matchID, Payload: ClockPayload{ClockSeconds: state.ClockSeconds}})
	return nil
}

// ResumeMatch restarts a paused clock.
func (c *LiveMatchController) ResumeMatch(ctx context.Context, matchID int) error {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.transitionOrExplain(ctx, matchID, LifecycleLive); err != nil {
		return err
	}
	c.startClock(matchID)

	state, _ := c.store.Get(matchID)
	c.broadcaster.Publish(matchID, Event{Type: EventMatchResumed, MatchID: matchID, Payload: ClockPayload{ClockSeconds: state.ClockSeconds}})
	return nil
}

func (c *LiveMatchController) transitionOrExplain(ctx context.Context, matchID int, target Lifecycle) error {
	err := c.store.TransitionLifecycle(matchID, target)
	if errors.Is(err, ErrMatchStateNotFound) {
		return c.notFoundReason(ctx, matchID)
	}
	return err
}

// UpdatePlayerStat merges the given fields, publishes the diff immediately
// and schedules persistence. The IsPlaying toggle persists right away;
// counters go through the debounced path.
func (c *LiveMatchController) UpdatePlayerStat(ctx context.Context, matchID, playerID int, fields PlayerStatFields) (PlayerStat, error) {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	updated, err := c.store.ApplyPlayerStatUpdate(matchID, playerID, fields)
	if err != nil {
		if errors.Is(err, ErrMatchStateNotFound) {
			return PlayerStat{}, c.notFoundReason(ctx, matchID)
		}
		return PlayerStat{}, err
	}

	c.broadcaster.Publish(matchID, Event{Type: EventPlayerUpdated, MatchID: matchID, Payload: updated})

	if fields.IsPlaying != nil {
		if err := c.stats.WritePlayerStat(ctx, matchID, updated); err != nil {
			c.logger.Warn("immediate player stat write failed",
				slog.Int("match_id", matchID), slog.Int("player_id", playerID), slog.Any("error", err))
		}
	}
	if fields.HasCounters() {
		c.persister.Schedule(statKey(matchID, playerID), statWrite{matchID: matchID, stat: updated})
	}
	return updated, nil
}

// UpdateScore sets the score absolutely, publishes it, then persists it
// synchronously. Scores are low-frequency and high-visibility, so they skip
// the debounce; a failed write surfaces as ErrScoreNotPersisted while the
// in-memory state keeps the new value.
func (c *LiveMatchController) UpdateScore(ctx context.Context, matchID, homeScore, awayScore int) (ScorePayload, error) {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	home, away, err := c.store.ApplyScoreUpdate(matchID, homeScore, awayScore)
	if err != nil {
		if errors.Is(err, ErrMatchStateNotFound) {
			return ScorePayload{}, c.notFoundReason(ctx, matchID)
		}
		return ScorePayload{}, err
	}

	score := ScorePayload{HomeScore: home, AwayScore: away}
	c.broadcaster.Publish(matchID, Event{Type: EventScoreUpdated, MatchID: matchID, Payload: score})

	if err := c.stats.WriteScore(ctx, matchID, home, away); err != nil {
		c.logger.Warn("score write failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return score, fmt.Errorf("%w: %w", ErrScoreNotPersisted, err)
	}
	return score, nil
}

// Snapshot returns the full current state for viewer page loads and late
// websocket joins, for whom earlier diffs are unrecoverable.
func (c *LiveMatchController) Snapshot(ctx context.Context, matchID int) (*MatchState, error) {
	return c.GetOrInitialize(ctx, matchID)
}

// EndMatch drains pending writes, archives the final record, and only then
// advances the lifecycle to ended and clears the live state. Any failure
// before the transition leaves the match live or paused for a retry; partial
// failure never strands an ended match with unpersisted data.
func (c *LiveMatchController) EndMatch(ctx context.Context, matchID int) error {
	lock := c.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	state, err := c.store.Get(matchID)
	if err != nil {
		return c.notFoundReason(ctx, matchID)
	}
	switch state.Lifecycle {
	case LifecycleEnded:
		return ErrMatchEnded
	case LifecycleNotStarted:
		return ErrInvalidTransition
	}

	if err := c.persister.DrainMatch(ctx, matchKeyPrefix(matchID)); err != nil {
		return fmt.Errorf("%w: draining pending writes: %w", ErrEndMatchFailed, err)
	}

	// Re-read after the drain so the archive carries the latest ticks.
	state, err = c.store.Get(matchID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEndMatchFailed, err)
	}
	final := make([]PlayerStat, 0, len(state.Players))
	for _, stat := range state.Players {
		final = append(final, *stat)
	}
	if err := c.stats.WriteFinalRecord(ctx, matchID, state.HomeScore, state.AwayScore, state.ClockSeconds, final); err != nil {
		return fmt.Errorf("%w: archiving final record: %w", ErrEndMatchFailed, err)
	}

	if err := c.store.TransitionLifecycle(matchID, LifecycleEnded); err != nil {
		return fmt.Errorf("%w: %w", ErrEndMatchFailed, err)
	}
	c.stopClock(matchID)

	state.Lifecycle = LifecycleEnded
	c.broadcaster.Publish(matchID, Event{Type: EventMatchEnded, MatchID: matchID, Payload: state})
	c.store.Remove(matchID)
	// The final event is queued on every watcher before the room shuts, so
	// viewers see MATCH_ENDED and then the disconnect.
	c.broadcaster.CloseMatch(matchID)

	c.logger.Info("match ended and archived",
		slog.Int("match_id", matchID),
		slog.Int("home_score", state.HomeScore),
		slog.Int("away_score", state.AwayScore))
	return nil
}

// Shutdown stops every clock and flushes all pending writes. Called on
// graceful process shutdown.
func (c *LiveMatchController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for matchID, stop := range c.clocks {
		close(stop)
		delete(c.clocks, matchID)
	}
	c.mu.Unlock()

	return c.persister.DrainAll(ctx)
}

func (c *LiveMatchController) startClock(matchID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.clocks[matchID]; running {
		return
	}
	stop := make(chan struct{})
	c.clocks[matchID] = stop
	go c.runClock(matchID, stop)
}

func (c *LiveMatchController) stopClock(matchID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stop, running := c.clocks[matchID]; running {
		close(stop)
		delete(c.clocks, matchID)
	}
}

// runClock drives the match clock on a one-second cadence. Ticking is
// elapsed-time based rather than fire-count based, so scheduling drift does
// not compound. Clock-only diffs are coalesced to one broadcast every few
// seconds to bound fanout volume; accrued playing time still persists
// through the debounced path at full resolution.
func (c *LiveMatchController) runClock(matchID int, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := time.Now()
	sinceBroadcast := 0

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			elapsed := int(now.Sub(last).Seconds())
			if elapsed <= 0 {
				continue
			}
			last = last.Add(time.Duration(elapsed) * time.Second)

			clock, updated, err := c.store.Tick(matchID, elapsed)
			if err != nil {
				return
			}
			for _, stat := range updated {
				c.persister.Schedule(statKey(matchID, stat.PlayerID), statWrite{matchID: matchID, stat: stat})
			}

			sinceBroadcast += elapsed
			if sinceBroadcast >= c.clockBroadcast {
				sinceBroadcast = 0
				c.broadcaster.Publish(matchID, Event{Type: EventClockTick, MatchID: matchID, Payload: ClockPayload{ClockSeconds: clock}})
			}
		}
	}
}
