package live

import "sync"

// MatchStatsStore holds the authoritative MatchState for every currently
// tracked match, keyed by match id. It is a plain guarded map with no I/O;
// the controller owns all mutation, everything else reads snapshots.
type MatchStatsStore struct {
	mu      sync.RWMutex
	matches map[int]*MatchState
}

func NewMatchStatsStore() *MatchStatsStore {
	return &MatchStatsStore{
		matches: make(map[int]*MatchState),
	}
}

// Initialize creates a fresh not-started state with zeroed stat lines for
// every roster player on both teams. Returns ErrAlreadyInitialized if state
// for the match already exists; callers racing on first init should treat
// that as "read the winner", not as a failure.
func (s *MatchStatsStore) Initialize(matchID, homeTeamID, awayTeamID int, homeRoster, awayRoster []RosterEntry) (*MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[matchID]; ok {
		return nil, ErrAlreadyInitialized
	}

	state := &MatchState{
		MatchID:    matchID,
		HomeTeamID: homeTeamID,
		AwayTeamID: awayTeamID,
		Lifecycle:  LifecycleNotStarted,
		Players:    make(map[int]*PlayerStat, len(homeRoster)+len(awayRoster)),
	}
	for _, entry := range append(homeRoster, awayRoster...) {
		state.Players[entry.PlayerID] = &PlayerStat{
			PlayerID:     entry.PlayerID,
			JerseyNumber: entry.JerseyNumber,
			Position:     entry.Position,
		}
	}

	s.matches[matchID] = state
	return state.clone(), nil
}

// Get returns a snapshot of the current state, or ErrMatchStateNotFound.
func (s *MatchStatsStore) Get(matchID int) (*MatchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchStateNotFound
	}
	return state.clone(), nil
}

// ApplyPlayerStatUpdate merges the provided fields into the player's stat
// line and returns the updated copy. Counter values are replaced wholesale.
// Toggling IsPlaying does not touch TimePlayed; only Tick accrues it.
func (s *MatchStatsStore) ApplyPlayerStatUpdate(matchID, playerID int, fields PlayerStatFields) (PlayerStat, error) {
	if err := fields.Validate(); err != nil {
		return PlayerStat{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.matches[matchID]
	if !ok {
		return PlayerStat{}, ErrMatchStateNotFound
	}
	if state.Lifecycle == LifecycleEnded {
		return PlayerStat{}, ErrMatchEnded
	}
	stat, ok := state.Players[playerID]
	if !ok {
		return PlayerStat{}, ErrPlayerStatNotFound
	}

	fields.apply(stat)
	return *stat, nil
}

// Tick advances the clock by the given number of seconds and accrues
// TimePlayed for every on-field player. A no-op unless the match is live.
// Returns the new clock value and the stat lines of accruing players.
func (s *MatchStatsStore) Tick(matchID, seconds int) (int, []PlayerStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.matches[matchID]
	if !ok {
		return 0, nil, ErrMatchStateNotFound
	}
	if state.Lifecycle != LifecycleLive || seconds <= 0 {
		return state.ClockSeconds, nil, nil
	}

	state.ClockSeconds += seconds
	var updated []PlayerStat
	for _, stat := range state.Players {
		if !stat.IsPlaying {
			continue
		}
		stat.TimePlayed += seconds
		if stat.TimePlayed > state.ClockSeconds {
			// TimePlayed can never outrun the match clock.
			stat.TimePlayed = state.ClockSeconds
		}
		updated = append(updated, *stat)
	}
	return state.ClockSeconds, updated, nil
}

// ApplyScoreUpdate sets the score absolutely; it never increments.
func (s *MatchStatsStore) ApplyScoreUpdate(matchID, homeScore, awayScore int) (home, away int, err error) {
	if homeScore < 0 || awayScore < 0 {
		return 0, 0, ErrInvalidScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.matches[matchID]
	if !ok {
		return 0, 0, ErrMatchStateNotFound
	}
	if state.Lifecycle == LifecycleEnded {
		return 0, 0, ErrMatchEnded
	}

	state.HomeScore = homeScore
	state.AwayScore = awayScore
	return state.HomeScore, state.AwayScore, nil
}

// TransitionLifecycle enforces the allowed-transition graph.
func (s *MatchStatsStore) TransitionLifecycle(matchID int, target Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.matches[matchID]
	if !ok {
		return ErrMatchStateNotFound
	}
	if !canTransition(state.Lifecycle, target) {
		if state.Lifecycle == LifecycleEnded {
			return ErrMatchEnded
		}
		return ErrInvalidTransition
	}

	state.Lifecycle = target
	return nil
}

// Restore overwrites clock, score and previously persisted stat lines on a
// not-started state, used when resuming a match after a process restart.
// Stat entries for players no longer on the roster are ignored. TimePlayed
// is only settable through this path; regular updates never touch it.
func (s *MatchStatsStore) Restore(matchID, homeScore, awayScore, clockSeconds int, stats []PlayerStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.matches[matchID]
	if !ok {
		return ErrMatchStateNotFound
	}
	if state.Lifecycle != LifecycleNotStarted {
		return ErrInvalidTransition
	}

	state.HomeScore = homeScore
	state.AwayScore = awayScore
	state.ClockSeconds = clockSeconds
	for _, restored := range stats {
		current, ok := state.Players[restored.PlayerID]
		if !ok {
			continue
		}
		jersey, position := current.JerseyNumber, current.Position
		*current = restored
		current.JerseyNumber, current.Position = jersey, position
	}
	return nil
}

// Remove drops the live state for an ended match.
func (s *MatchStatsStore) Remove(matchID int) {
	s.mu.Lock()
	delete(s.matches, matchID)
	s.mu.Unlock()
}

// LiveMatchIDs lists every match currently tracked in memory.
func (s *MatchStatsStore) LiveMatchIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	return ids
}
