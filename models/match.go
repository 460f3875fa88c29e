package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCanceled  MatchStatus = "canceled"
)

type Match struct {
	ID         int         `json:"id" db:"id"`
	HomeTeamID int         `json:"home_team_id" db:"home_team_id"`
	AwayTeamID int         `json:"away_team_id" db:"away_team_id"`
	KickoffAt  time.Time   `json:"kickoff_at" db:"kickoff_at"`
	Venue      *string     `json:"venue,omitempty" db:"venue"`
	Status     MatchStatus `json:"status" db:"status"`
	HomeScore  int         `json:"home_score" db:"home_score"`
	AwayScore  int         `json:"away_score" db:"away_score"`
	// DurationSeconds is the final clock value, set when the match completes.
	DurationSeconds *int      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	HomeTeam *Team `json:"home_team,omitempty" db:"-"`
	AwayTeam *Team `json:"away_team,omitempty" db:"-"`
}
