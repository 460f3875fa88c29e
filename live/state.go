package live

import "errors"

var (
	ErrMatchStateNotFound = errors.New("live match state not found")
	ErrPlayerStatNotFound = errors.New("player stat not found for live match")
	ErrAlreadyInitialized = errors.New("live match state already initialized")
	ErrInvalidScore       = errors.New("score values must be non-negative")
	ErrInvalidCounters    = errors.New("stat counters must be non-negative")
	ErrInvalidTransition  = errors.New("invalid match lifecycle transition")
	ErrMatchEnded         = errors.New("match has ended, no further mutations accepted")
	ErrEndMatchFailed     = errors.New("failed to finalize match, live state unchanged")
)

type Lifecycle string

const (
	LifecycleNotStarted Lifecycle = "not_started"
	LifecycleLive       Lifecycle = "live"
	LifecyclePaused     Lifecycle = "paused"
	LifecycleEnded      Lifecycle = "ended"
)

// allowedTransitions is the lifecycle graph. Ended is terminal.
var allowedTransitions = map[Lifecycle][]Lifecycle{
	LifecycleNotStarted: {LifecycleLive},
	LifecycleLive:       {LifecyclePaused, LifecycleEnded},
	LifecyclePaused:     {LifecycleLive, LifecycleEnded},
	LifecycleEnded:      {},
}

func canTransition(from, to Lifecycle) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// PlayerStat is the live stat line for one player in one match.
type PlayerStat struct {
	PlayerID        int    `json:"player_id"`
	JerseyNumber    int    `json:"jersey_number"`
	Position        string `json:"position"`
	IsPlaying       bool   `json:"is_playing"`
	TimePlayed      int    `json:"time_played"`
	Goals           int    `json:"goals"`
	Assists         int    `json:"assists"`
	PassesCompleted int    `json:"passes_completed"`
	DuelsWon        int    `json:"duels_won"`
	DuelsLost       int    `json:"duels_lost"`
	GoalsAllowed    int    `json:"goals_allowed"`
	GoalsSaved      int    `json:"goals_saved"`
}

// PlayerStatFields carries a partial update. Nil pointers mean "leave as is".
// Counter values are absolute, not increments.
type PlayerStatFields struct {
	IsPlaying       *bool `json:"is_playing,omitempty"`
	Goals           *int  `json:"goals,omitempty"`
	Assists         *int  `json:"assists,omitempty"`
	PassesCompleted *int  `json:"passes_completed,omitempty"`
	DuelsWon        *int  `json:"duels_won,omitempty"`
	DuelsLost       *int  `json:"duels_lost,omitempty"`
	GoalsAllowed    *int  `json:"goals_allowed,omitempty"`
	GoalsSaved      *int  `json:"goals_saved,omitempty"`
}

func (f PlayerStatFields) Validate() error {
	for _, v := range []*int{f.Goals, f.Assists, f.PassesCompleted, f.DuelsWon, f.DuelsLost, f.GoalsAllowed, f.GoalsSaved} {
		if v != nil && *v < 0 {
			return ErrInvalidCounters
		}
	}
	return nil
}

// HasCounters reports whether any debounce-eligible counter field is set.
// The IsPlaying toggle is an immediate-effect field and is persisted without
// debounce.
func (f PlayerStatFields) HasCounters() bool {
	return f.Goals != nil || f.Assists != nil || f.PassesCompleted != nil ||
		f.DuelsWon != nil || f.DuelsLost != nil || f.GoalsAllowed != nil || f.GoalsSaved != nil
}

func (f PlayerStatFields) apply(s *PlayerStat) {
	if f.IsPlaying != nil {
		s.IsPlaying = *f.IsPlaying
	}
	if f.Goals != nil {
		s.Goals = *f.Goals
	}
	if f.Assists != nil {
		s.Assists = *f.Assists
	}
	if f.PassesCompleted != nil {
		s.PassesCompleted = *f.PassesCompleted
	}
	if f.DuelsWon != nil {
		s.DuelsWon = *f.DuelsWon
	}
	if f.DuelsLost != nil {
		s.DuelsLost = *f.DuelsLost
	}
	if f.GoalsAllowed != nil {
		s.GoalsAllowed = *f.GoalsAllowed
	}
	if f.GoalsSaved != nil {
		s.GoalsSaved = *f.GoalsSaved
	}
}

// FieldsFromStat builds a full absolute-set update from a stat line, used
// when flushing a debounced write or re-seeding restored state.
func FieldsFromStat(s PlayerStat) PlayerStatFields {
	isPlaying := s.IsPlaying
	goals, assists, passes := s.Goals, s.Assists, s.PassesCompleted
	won, lost := s.DuelsWon, s.DuelsLost
	allowed, saved := s.GoalsAllowed, s.GoalsSaved
	return PlayerStatFields{
		IsPlaying:       &isPlaying,
		Goals:           &goals,
		Assists:         &assists,
		PassesCompleted: &passes,
		DuelsWon:        &won,
		DuelsLost:       &lost,
		GoalsAllowed:    &allowed,
		GoalsSaved:      &saved,
	}
}

// MatchState is the authoritative in-memory state for one live match.
type MatchState struct {
	MatchID      int                 `json:"match_id"`
	HomeTeamID   int                 `json:"home_team_id"`
	AwayTeamID   int                 `json:"away_team_id"`
	HomeScore    int                 `json:"home_score"`
	AwayScore    int                 `json:"away_score"`
	ClockSeconds int                 `json:"clock_seconds"`
	Lifecycle    Lifecycle           `json:"lifecycle"`
	Players      map[int]*PlayerStat `json:"players"`
}

func (m *MatchState) clone() *MatchState {
	cp := *m
	cp.Players = make(map[int]*PlayerStat, len(m.Players))
	for id, ps := range m.Players {
		stat := *ps
		cp.Players[id] = &stat
	}
	return &cp
}

// RosterEntry seeds a zeroed PlayerStat when a match is initialized.
type RosterEntry struct {
	PlayerID     int    `json:"player_id"`
	JerseyNumber int    `json:"jersey_number"`
	Position     string `json:"position"`
}
