package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeMatchSource struct {
	mu      sync.Mutex
	matches map[int]MatchInfo
}

func (f *fakeMatchSource) LiveMatchInfo(_ context.Context, matchID int) (MatchInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.matches[matchID]
	if !ok {
		return MatchInfo{}, fmt.Errorf("match %d: %w", matchID, ErrMatchStateNotFound)
	}
	return info, nil
}

func (f *fakeMatchSource) complete(matchID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.matches[matchID]
	info.Completed = true
	f.matches[matchID] = info
}

type fakeRosterSource struct {
	rosters map[int][]RosterEntry
}

func (f *fakeRosterSource) Roster(_ context.Context, teamID int) ([]RosterEntry, error) {
	return f.rosters[teamID], nil
}

type fakeStatWriter struct {
	mu          sync.Mutex
	stats       map[string]PlayerStat
	prior       []PlayerStat
	scoreWrites []ScorePayload
	finals      int
	finalStats  []PlayerStat
	finalClock  int

	failStatWrites  bool
	failScoreWrites bool
	failFinal       bool
}

func newFakeStatWriter() *fakeStatWriter {
	return &fakeStatWriter{stats: make(map[string]PlayerStat)}
}

func (f *fakeStatWriter) WritePlayerStat(_ context.Context, matchID int, stat PlayerStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatWrites {
		return errors.New("storage unavailable")
	}
	f.stats[fmt.Sprintf("%d:%d", matchID, stat.PlayerID)] = stat
	return nil
}

func (f *fakeStatWriter) WriteScore(_ context.Context, _, homeScore, awayScore int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScoreWrites {
		return errors.New("storage unavailable")
	}
	f.scoreWrites = append(f.scoreWrites, ScorePayload{HomeScore: homeScore, AwayScore: awayScore})
	return nil
}

func (f *fakeStatWriter) WriteFinalRecord(_ context.Context, _, homeScore, awayScore, clockSeconds int, stats []PlayerStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFinal {
		return errors.New("storage unavailable")
	}
	f.finals++
	f.finalClock = clockSeconds
	f.finalStats = stats
	return nil
}

func (f *fakeStatWriter) MarkLive(_ context.Context, _ int) error { return nil }

func (f *fakeStatWriter) LoadPlayerStats(_ context.Context, _ int) ([]PlayerStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prior, nil
}

func (f *fakeStatWriter) lastScoreWrite() (ScorePayload, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scoreWrites) == 0 {
		return ScorePayload{}, 0
	}
	return f.scoreWrites[len(f.scoreWrites)-1], len(f.scoreWrites)
}

func (f *fakeStatWriter) statWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stats)
}

func (f *fakeStatWriter) statFor(matchID, playerID int) (PlayerStat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stat, ok := f.stats[fmt.Sprintf("%d:%d", matchID, playerID)]
	return stat, ok
}

type controllerFixture struct {
	controller *LiveMatchController
	matches    *fakeMatchSource
	stats      *fakeStatWriter
	bus        *EventBus
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	matches := &fakeMatchSource{matches: map[int]MatchInfo{
		7: {ID: 7, HomeTeamID: 100, AwayTeamID: 200},
	}}
	home, away := testRosters()
	rosters := &fakeRosterSource{rosters: map[int][]RosterEntry{
		100: home,
		200: away,
	}}
	stats := newFakeStatWriter()
	bus := NewEventBus()

	controller := NewLiveMatchController(ControllerConfig{
		Store:       NewMatchStatsStore(),
		Broadcaster: bus,
		Matches:     matches,
		Rosters:     rosters,
		Stats:       stats,
		Logger:      discardLogger(),
		FlushWindow: 30 * time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
	})
	t.Cleanup(func() {
		controller.Shutdown(context.Background())
	})

	return &controllerFixture{controller: controller, matches: matches, stats: stats, bus: bus}
}

func TestGetOrInitializeSeedsFromMatchRow(t *testing.T) {
	fx := newControllerFixture(t)

	state, err := fx.controller.GetOrInitialize(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrInitialize: %v", err)
	}
	if state.HomeTeamID != 100 || state.AwayTeamID != 200 {
		t.Errorf("teams = %d/%d, want 100/200", state.HomeTeamID, state.AwayTeamID)
	}
	if state.Lifecycle != LifecycleNotStarted {
		t.Errorf("lifecycle = %q, want %q", state.Lifecycle, LifecycleNotStarted)
	}
	if len(state.Players) != 3 {
		t.Errorf("players = %d, want 3", len(state.Players))
	}
}

func TestGetOrInitializeConcurrentCallersConverge(t *testing.T) {
	fx := newControllerFixture(t)

	const callers = 16
	states := make([]*MatchState, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := fx.controller.GetOrInitialize(context.Background(), 7)
			if err != nil {
				t.Errorf("GetOrInitialize: %v", err)
				return
			}
			states[i] = state
		}()
	}
	wg.Wait()

	for i, state := range states {
		if state == nil || state.MatchID != 7 {
			t.Fatalf("caller %d got %+v", i, state)
		}
	}
}

func TestGetOrInitializeRestoresAfterRestart(t *testing.T) {
	fx := newControllerFixture(t)
	fx.matches.matches[7] = MatchInfo{ID: 7, HomeTeamID: 100, AwayTeamID: 200, HomeScore: 2, AwayScore: 1}
	fx.stats.prior = []PlayerStat{
		{PlayerID: 1, TimePlayed: 1800, Goals: 2},
		{PlayerID: 3, TimePlayed: 1500, Assists: 1},
	}

	state, err := fx.controller.GetOrInitialize(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrInitialize: %v", err)
	}
	if state.HomeScore != 2 || state.AwayScore != 1 {
		t.Errorf("score = %d:%d, want 2:1", state.HomeScore, state.AwayScore)
	}
	// The clock resumes from the longest persisted playing time, and the
	// match waits for an operator to start it again.
	if state.ClockSeconds != 1800 {
		t.Errorf("clock = %d, want 1800", state.ClockSeconds)
	}
	if state.Lifecycle != LifecycleNotStarted {
		t.Errorf("lifecycle = %q, want %q", state.Lifecycle, LifecycleNotStarted)
	}
	if state.Players[1].Goals != 2 {
		t.Errorf("restored goals = %d, want 2", state.Players[1].Goals)
	}
}

func TestUpdatePlayerStatPublishesAndDebounces(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	if _, err := fx.controller.StartMatch(ctx, 7); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	events := fx.bus.Subscribe(7, "test")

	// Rapid burst of counter updates to the same player.
	for goals := 1; goals <= 5; goals++ {
		if _, err := fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{Goals: intPtr(goals)}); err != nil {
			t.Fatalf("UpdatePlayerStat: %v", err)
		}
	}

	// Every diff is broadcast immediately even though the writes coalesce.
	diffs := 0
	for i := 0; i < 5; i++ {
		ev := recvEvent(t, events)
		if ev.Type == EventPlayerUpdated {
			diffs++
		}
	}
	if diffs != 5 {
		t.Errorf("broadcast diffs = %d, want 5", diffs)
	}

	// The burst lands as one durable write carrying the final value.
	waitFor(t, time.Second, func() bool { return fx.stats.statWriteCount() == 1 })
	stat, ok := fx.stats.statFor(7, 1)
	if !ok || stat.Goals != 5 {
		t.Errorf("persisted stat = %+v, want goals 5", stat)
	}
}

func TestUpdatePlayerStatIsPlayingPersistsImmediately(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)

	if _, err := fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{IsPlaying: boolPtr(true)}); err != nil {
		t.Fatalf("UpdatePlayerStat: %v", err)
	}

	// No debounce on the substitution toggle.
	stat, ok := fx.stats.statFor(7, 1)
	if !ok || !stat.IsPlaying {
		t.Errorf("persisted stat = %+v, want isPlaying true", stat)
	}
}

func TestUpdateScoreSurfacesPersistenceWarning(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	fx.stats.failScoreWrites = true

	score, err := fx.controller.UpdateScore(ctx, 7, 1, 0)
	if !errors.Is(err, ErrScoreNotPersisted) {
		t.Fatalf("error = %v, want ErrScoreNotPersisted", err)
	}
	// The optimistic in-memory update sticks.
	if score.HomeScore != 1 || score.AwayScore != 0 {
		t.Errorf("score = %d:%d, want 1:0", score.HomeScore, score.AwayScore)
	}
	state, _ := fx.controller.Snapshot(ctx, 7)
	if state.HomeScore != 1 {
		t.Errorf("snapshot home score = %d, want 1", state.HomeScore)
	}
}

func TestSequentialScoreUpdatesLastWriteWins(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)

	// Two corrections for the same team in a row; arrival order decides.
	if _, err := fx.controller.UpdateScore(ctx, 7, 2, 0); err != nil {
		t.Fatalf("first UpdateScore: %v", err)
	}
	score, err := fx.controller.UpdateScore(ctx, 7, 3, 0)
	if err != nil {
		t.Fatalf("second UpdateScore: %v", err)
	}
	if score.HomeScore != 3 || score.AwayScore != 0 {
		t.Errorf("score = %d:%d, want 3:0", score.HomeScore, score.AwayScore)
	}

	state, err := fx.controller.Snapshot(ctx, 7)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state.HomeScore != 3 {
		t.Errorf("snapshot home score = %d, want 3", state.HomeScore)
	}

	// Scores persist synchronously, so both writes landed and the last one
	// carries the final value.
	last, writes := fx.stats.lastScoreWrite()
	if writes != 2 {
		t.Fatalf("durable score writes = %d, want 2", writes)
	}
	if last.HomeScore != 3 || last.AwayScore != 0 {
		t.Errorf("last durable score = %d:%d, want 3:0", last.HomeScore, last.AwayScore)
	}
}

func TestSnapshotMatchesAccumulatedDiffs(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)

	fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{Goals: intPtr(2), IsPlaying: boolPtr(true)})
	fx.controller.UpdatePlayerStat(ctx, 7, 3, PlayerStatFields{Assists: intPtr(1)})
	fx.controller.UpdateScore(ctx, 7, 2, 0)

	state, err := fx.controller.Snapshot(ctx, 7)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state.HomeScore != 2 || state.AwayScore != 0 {
		t.Errorf("score = %d:%d, want 2:0", state.HomeScore, state.AwayScore)
	}
	if state.Players[1].Goals != 2 || !state.Players[1].IsPlaying {
		t.Errorf("player 1 = %+v", state.Players[1])
	}
	if state.Players[3].Assists != 1 {
		t.Errorf("player 3 = %+v", state.Players[3])
	}
}

func TestEndMatchArchivesThenRejectsMutations(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{Goals: intPtr(1)})
	fx.controller.UpdateScore(ctx, 7, 1, 0)

	if err := fx.controller.EndMatch(ctx, 7); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}
	fx.matches.complete(7)

	if fx.stats.finals != 1 {
		t.Fatalf("final records = %d, want 1", fx.stats.finals)
	}
	// Pending debounced writes drained before the archive.
	found := false
	for _, stat := range fx.stats.finalStats {
		if stat.PlayerID == 1 && stat.Goals == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("final stats missing player 1 goals: %+v", fx.stats.finalStats)
	}

	// Scenario A from the live-tracking contract: no mutation after end.
	if _, err := fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{Goals: intPtr(2)}); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("stat update after end = %v, want ErrMatchEnded", err)
	}
	if _, err := fx.controller.UpdateScore(ctx, 7, 2, 0); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("score update after end = %v, want ErrMatchEnded", err)
	}
	if err := fx.controller.EndMatch(ctx, 7); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("double end = %v, want ErrMatchEnded", err)
	}
}

func TestEndMatchClosesWatcherFeeds(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	events := fx.bus.Subscribe(7, "viewer")

	if err := fx.controller.EndMatch(ctx, 7); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}

	// Watchers receive the final event and are then detached from the dead
	// match instead of lingering on it.
	sawEnded := false
	deadline := time.After(time.Second)
	for {
		select {
		case ev, open := <-events:
			if !open {
				if !sawEnded {
					t.Fatal("feed closed without delivering MATCH_ENDED")
				}
				return
			}
			if ev.Type == EventMatchEnded {
				sawEnded = true
			}
		case <-deadline:
			t.Fatal("feed never closed after the match ended")
		}
	}
}

func TestEndMatchFailureLeavesMatchLive(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	fx.stats.failFinal = true

	err := fx.controller.EndMatch(ctx, 7)
	if !errors.Is(err, ErrEndMatchFailed) {
		t.Fatalf("error = %v, want ErrEndMatchFailed", err)
	}

	// The match must remain mutable so the operator can retry the end.
	state, err := fx.controller.Snapshot(ctx, 7)
	if err != nil {
		t.Fatalf("Snapshot after failed end: %v", err)
	}
	if state.Lifecycle != LifecycleLive {
		t.Errorf("lifecycle = %q, want %q", state.Lifecycle, LifecycleLive)
	}

	fx.stats.failFinal = false
	if err := fx.controller.EndMatch(ctx, 7); err != nil {
		t.Errorf("retried EndMatch: %v", err)
	}
}

func TestEndMatchRequiresStartedMatch(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.GetOrInitialize(ctx, 7)

	if err := fx.controller.EndMatch(ctx, 7); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("end before start = %v, want ErrInvalidTransition", err)
	}
}

func TestMutationsOnUnknownMatchReportNotFound(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	// Scenario B: nothing was ever initialized for this id.
	if _, err := fx.controller.UpdatePlayerStat(ctx, 99, 1, PlayerStatFields{Goals: intPtr(1)}); !errors.Is(err, ErrMatchStateNotFound) {
		t.Errorf("unknown match stat update = %v, want ErrMatchStateNotFound", err)
	}
	if _, err := fx.controller.UpdateScore(ctx, 99, 1, 0); !errors.Is(err, ErrMatchStateNotFound) {
		t.Errorf("unknown match score update = %v, want ErrMatchStateNotFound", err)
	}
}

func TestMutationsOnArchivedMatchReportEnded(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	if err := fx.controller.EndMatch(ctx, 7); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}
	fx.matches.complete(7)

	// Live state is cleared after end, but the completed match row lets the
	// controller tell "ended" apart from "never existed".
	if _, err := fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{Goals: intPtr(1)}); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("archived match stat update = %v, want ErrMatchEnded", err)
	}
	if _, err := fx.controller.Snapshot(ctx, 7); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("archived match snapshot = %v, want ErrMatchEnded", err)
	}
}

func TestPauseStopsClockAccrual(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.StartMatch(ctx, 7)
	fx.controller.UpdatePlayerStat(ctx, 7, 1, PlayerStatFields{IsPlaying: boolPtr(true)})

	if err := fx.controller.PauseMatch(ctx, 7); err != nil {
		t.Fatalf("PauseMatch: %v", err)
	}
	state, _ := fx.controller.Snapshot(ctx, 7)
	pausedClock := state.ClockSeconds

	time.Sleep(1500 * time.Millisecond)

	state, _ = fx.controller.Snapshot(ctx, 7)
	if state.ClockSeconds != pausedClock {
		t.Errorf("clock advanced while paused: %d -> %d", pausedClock, state.ClockSeconds)
	}

	if err := fx.controller.ResumeMatch(ctx, 7); err != nil {
		t.Fatalf("ResumeMatch: %v", err)
	}
	state, _ = fx.controller.Snapshot(ctx, 7)
	if state.Lifecycle != LifecycleLive {
		t.Errorf("lifecycle after resume = %q, want %q", state.Lifecycle, LifecycleLive)
	}
}

func TestLifecycleEventsBroadcast(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()
	fx.controller.GetOrInitialize(ctx, 7)
	events := fx.bus.Subscribe(7, "test")

	fx.controller.StartMatch(ctx, 7)
	fx.controller.PauseMatch(ctx, 7)
	fx.controller.ResumeMatch(ctx, 7)
	fx.controller.EndMatch(ctx, 7)

	want := []EventType{EventMatchStarted, EventMatchPaused, EventMatchResumed, EventMatchEnded}
	for _, wantType := range want {
		ev := recvEvent(t, events)
		for ev.Type == EventClockTick {
			ev = recvEvent(t, events)
		}
		if ev.Type != wantType {
			t.Fatalf("event = %q, want %q", ev.Type, wantType)
		}
	}
}
