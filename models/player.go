package models

import "time"

type PlayerPosition string

const (
	PositionGoalkeeper PlayerPosition = "GK"
	PositionDefender   PlayerPosition = "DF"
	PositionMidfielder PlayerPosition = "MF"
	PositionForward    PlayerPosition = "FW"
)

func (p PlayerPosition) Valid() bool {
	switch p {
	case PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward:
		return true
	}
	return false
}

type Player struct {
	ID           int            `json:"id" db:"id"`
	TeamID       int            `json:"team_id" db:"team_id"`
	FirstName    string         `json:"first_name" db:"first_name"`
	LastName     string         `json:"last_name" db:"last_name"`
	JerseyNumber int            `json:"jersey_number" db:"jersey_number"`
	Position     PlayerPosition `json:"position" db:"position"`
	BirthDate    *time.Time     `json:"birth_date,omitempty" db:"birth_date"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`

	PhotoKey *string `json:"-" db:"photo_key"`
	PhotoURL *string `json:"photo_url,omitempty" db:"-"`
}
