package live

import (
	"errors"
	"testing"
)

func testRosters() ([]RosterEntry, []RosterEntry) {
	home := []RosterEntry{
		{PlayerID: 1, JerseyNumber: 9, Position: "FW"},
		{PlayerID: 2, JerseyNumber: 1, Position: "GK"},
	}
	away := []RosterEntry{
		{PlayerID: 3, JerseyNumber: 10, Position: "MF"},
	}
	return home, away
}

func newTestStore(t *testing.T, matchID int) *MatchStatsStore {
	t.Helper()
	store := NewMatchStatsStore()
	home, away := testRosters()
	if _, err := store.Initialize(matchID, 100, 200, home, away); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return store
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestInitializeSeedsZeroedStats(t *testing.T) {
	store := newTestStore(t, 42)

	state, err := store.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.Lifecycle != LifecycleNotStarted {
		t.Errorf("lifecycle = %q, want %q", state.Lifecycle, LifecycleNotStarted)
	}
	if len(state.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(state.Players))
	}
	gk := state.Players[2]
	if gk.JerseyNumber != 1 || gk.Position != "GK" {
		t.Errorf("roster metadata not carried over: %+v", gk)
	}
	if gk.Goals != 0 || gk.TimePlayed != 0 || gk.IsPlaying {
		t.Errorf("stat line not zeroed: %+v", gk)
	}

	if _, err := store.Initialize(42, 100, 200, nil, nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestApplyPlayerStatUpdateLastWriteWins(t *testing.T) {
	store := newTestStore(t, 1)

	if _, err := store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{Goals: intPtr(1), Assists: intPtr(2)}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	updated, err := store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{Goals: intPtr(3)})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	// Counter values are absolute; the later write replaces goals but the
	// untouched assists field survives.
	if updated.Goals != 3 {
		t.Errorf("goals = %d, want 3", updated.Goals)
	}
	if updated.Assists != 2 {
		t.Errorf("assists = %d, want 2", updated.Assists)
	}
}

func TestApplyPlayerStatUpdateErrors(t *testing.T) {
	store := newTestStore(t, 1)

	if _, err := store.ApplyPlayerStatUpdate(99, 1, PlayerStatFields{}); !errors.Is(err, ErrMatchStateNotFound) {
		t.Errorf("unknown match error = %v, want ErrMatchStateNotFound", err)
	}
	if _, err := store.ApplyPlayerStatUpdate(1, 99, PlayerStatFields{}); !errors.Is(err, ErrPlayerStatNotFound) {
		t.Errorf("unknown player error = %v, want ErrPlayerStatNotFound", err)
	}
	if _, err := store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{Goals: intPtr(-1)}); !errors.Is(err, ErrInvalidCounters) {
		t.Errorf("negative counter error = %v, want ErrInvalidCounters", err)
	}
}

func TestTickAccruesOnlyForPlayingPlayers(t *testing.T) {
	store := newTestStore(t, 1)
	if err := store.TransitionLifecycle(1, LifecycleLive); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if _, err := store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{IsPlaying: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	clock, updated, err := store.Tick(1, 5)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if clock != 5 {
		t.Errorf("clock = %d, want 5", clock)
	}
	if len(updated) != 1 || updated[0].PlayerID != 1 {
		t.Fatalf("updated = %+v, want exactly player 1", updated)
	}
	if updated[0].TimePlayed != 5 {
		t.Errorf("timePlayed = %d, want 5", updated[0].TimePlayed)
	}

	state, _ := store.Get(1)
	if state.Players[2].TimePlayed != 0 {
		t.Errorf("benched player accrued time: %d", state.Players[2].TimePlayed)
	}
}

func TestTickNoOpUnlessLive(t *testing.T) {
	store := newTestStore(t, 1)

	clock, updated, err := store.Tick(1, 5)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if clock != 0 || updated != nil {
		t.Errorf("tick on not-started match mutated state: clock=%d updated=%v", clock, updated)
	}

	store.TransitionLifecycle(1, LifecycleLive)
	store.Tick(1, 10)
	store.TransitionLifecycle(1, LifecyclePaused)

	clock, _, _ = store.Tick(1, 7)
	if clock != 10 {
		t.Errorf("paused clock advanced: %d, want 10", clock)
	}
}

func TestTickCapsTimePlayedAtClock(t *testing.T) {
	store := newTestStore(t, 1)
	store.TransitionLifecycle(1, LifecycleLive)
	store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{IsPlaying: boolPtr(true)})

	store.Tick(1, 3)
	_, updated, _ := store.Tick(1, 4)

	for _, stat := range updated {
		if stat.TimePlayed > 7 {
			t.Errorf("timePlayed %d exceeds clock 7", stat.TimePlayed)
		}
	}
}

func TestLifecycleTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		path    []Lifecycle
		target  Lifecycle
		wantErr error
	}{
		{"start", nil, LifecycleLive, nil},
		{"pause live", []Lifecycle{LifecycleLive}, LifecyclePaused, nil},
		{"resume paused", []Lifecycle{LifecycleLive, LifecyclePaused}, LifecycleLive, nil},
		{"end live", []Lifecycle{LifecycleLive}, LifecycleEnded, nil},
		{"end paused", []Lifecycle{LifecycleLive, LifecyclePaused}, LifecycleEnded, nil},
		{"pause not started", nil, LifecyclePaused, ErrInvalidTransition},
		{"end not started", nil, LifecycleEnded, ErrInvalidTransition},
		{"restart ended", []Lifecycle{LifecycleLive, LifecycleEnded}, LifecycleLive, ErrMatchEnded},
		{"skip to live from nowhere", []Lifecycle{LifecycleLive, LifecycleEnded}, LifecyclePaused, ErrMatchEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t, 1)
			for _, step := range tc.path {
				if err := store.TransitionLifecycle(1, step); err != nil {
					t.Fatalf("setup transition to %q: %v", step, err)
				}
			}

			err := store.TransitionLifecycle(1, tc.target)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("transition to %q: error = %v, want %v", tc.target, err, tc.wantErr)
			}
		})
	}
}

func TestApplyScoreUpdateValidation(t *testing.T) {
	store := newTestStore(t, 1)

	home, away, err := store.ApplyScoreUpdate(1, 2, 1)
	if err != nil {
		t.Fatalf("ApplyScoreUpdate: %v", err)
	}
	if home != 2 || away != 1 {
		t.Errorf("score = %d:%d, want 2:1", home, away)
	}

	if _, _, err := store.ApplyScoreUpdate(1, -1, 0); !errors.Is(err, ErrInvalidScore) {
		t.Errorf("negative score error = %v, want ErrInvalidScore", err)
	}

	// Scores are absolute sets, never increments.
	home, away, _ = store.ApplyScoreUpdate(1, 1, 1)
	if home != 1 || away != 1 {
		t.Errorf("score = %d:%d, want 1:1", home, away)
	}
}

func TestMutationsRejectedAfterEnd(t *testing.T) {
	store := newTestStore(t, 1)
	store.TransitionLifecycle(1, LifecycleLive)
	store.TransitionLifecycle(1, LifecycleEnded)

	if _, err := store.ApplyPlayerStatUpdate(1, 1, PlayerStatFields{Goals: intPtr(1)}); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("stat update after end = %v, want ErrMatchEnded", err)
	}
	if _, _, err := store.ApplyScoreUpdate(1, 1, 0); !errors.Is(err, ErrMatchEnded) {
		t.Errorf("score update after end = %v, want ErrMatchEnded", err)
	}
}

func TestRestoreOnlyBeforeStart(t *testing.T) {
	store := newTestStore(t, 1)

	prior := []PlayerStat{
		{PlayerID: 1, TimePlayed: 600, Goals: 1},
		{PlayerID: 99, TimePlayed: 300}, // no longer on the roster
	}
	if err := store.Restore(1, 1, 0, 600, prior); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	state, _ := store.Get(1)
	if state.HomeScore != 1 || state.ClockSeconds != 600 {
		t.Errorf("restored state = %d:%d clock=%d", state.HomeScore, state.AwayScore, state.ClockSeconds)
	}
	restored := state.Players[1]
	if restored.TimePlayed != 600 || restored.Goals != 1 {
		t.Errorf("restored stat line = %+v", restored)
	}
	if restored.JerseyNumber != 9 || restored.Position != "FW" {
		t.Errorf("restore clobbered roster metadata: %+v", restored)
	}
	if _, ok := state.Players[99]; ok {
		t.Error("restore resurrected a player not on the roster")
	}

	store.TransitionLifecycle(1, LifecycleLive)
	if err := store.Restore(1, 0, 0, 0, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("restore on live match = %v, want ErrInvalidTransition", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	store := newTestStore(t, 1)

	snapshot, _ := store.Get(1)
	snapshot.HomeScore = 99
	snapshot.Players[1].Goals = 99

	state, _ := store.Get(1)
	if state.HomeScore != 0 || state.Players[1].Goals != 0 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestRemoveAndLiveMatchIDs(t *testing.T) {
	store := newTestStore(t, 1)
	home, away := testRosters()
	store.Initialize(2, 100, 200, home, away)

	if ids := store.LiveMatchIDs(); len(ids) != 2 {
		t.Fatalf("LiveMatchIDs = %v, want 2 entries", ids)
	}

	store.Remove(1)
	if _, err := store.Get(1); !errors.Is(err, ErrMatchStateNotFound) {
		t.Errorf("Get after Remove = %v, want ErrMatchStateNotFound", err)
	}
	if ids := store.LiveMatchIDs(); len(ids) != 1 || ids[0] != 2 {
		t.Errorf("LiveMatchIDs = %v, want [2]", ids)
	}
}
