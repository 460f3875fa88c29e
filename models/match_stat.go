package models

import "time"

// MatchPlayerStat is the durable per-player stat row for a match. While the
// match is live it holds the incrementally persisted values; after the match
// ends it is the permanent historical record.
type MatchPlayerStat struct {
	MatchID         int       `json:"match_id" db:"match_id"`
	PlayerID        int       `json:"player_id" db:"player_id"`
	IsPlaying       bool      `json:"is_playing" db:"is_playing"`
	TimePlayed      int       `json:"time_played" db:"time_played"`
	Goals           int       `json:"goals" db:"goals"`
	Assists         int       `json:"assists" db:"assists"`
	PassesCompleted int       `json:"passes_completed" db:"passes_completed"`
	DuelsWon        int       `json:"duels_won" db:"duels_won"`
	DuelsLost       int       `json:"duels_lost" db:"duels_lost"`
	GoalsAllowed    int       `json:"goals_allowed" db:"goals_allowed"`
	GoalsSaved      int       `json:"goals_saved" db:"goals_saved"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	Player *Player `json:"player,omitempty" db:"-"`
}
