package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avoronkov/fieldside/live"
	"github.com/avoronkov/fieldside/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchTeamInvalid = errors.New("match references an unknown team")
)

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	UpdateStatus(ctx context.Context, id int, status models.MatchStatus) error
	Delete(ctx context.Context, id int) error

	// LiveMatchInfo implements live.MatchSource.
	LiveMatchInfo(ctx context.Context, matchID int) (live.MatchInfo, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (home_team_id, away_team_id, kickoff_at, venue, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		match.HomeTeamID,
		match.AwayTeamID,
		match.KickoffAt,
		match.Venue,
		match.Status,
	).Scan(&match.ID, &match.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
		return ErrMatchTeamInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `
		SELECT id, home_team_id, away_team_id, kickoff_at, venue, status,
		       home_score, away_score, duration_seconds, created_at
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.HomeTeamID,
		&match.AwayTeamID,
		&match.KickoffAt,
		&match.Venue,
		&match.Status,
		&match.HomeScore,
		&match.AwayScore,
		&match.DurationSeconds,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error) {
	query := `
		SELECT id, home_team_id, away_team_id, kickoff_at, venue, status,
		       home_score, away_score, duration_seconds, created_at
		FROM matches`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY kickoff_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match := &models.Match{}
		if err := rows.Scan(
			&match.ID,
			&match.HomeTeamID,
			&match.AwayTeamID,
			&match.KickoffAt,
			&match.Venue,
			&match.Status,
			&match.HomeScore,
			&match.AwayScore,
			&match.DurationSeconds,
			&match.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) Update(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches
		SET home_team_id = $1, away_team_id = $2, kickoff_at = $3, venue = $4, status = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		match.HomeTeamID,
		match.AwayTeamID,
		match.KickoffAt,
		match.Venue,
		match.Status,
		match.ID,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
		return ErrMatchTeamInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, id int, status models.MatchStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match status %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) LiveMatchInfo(ctx context.Context, matchID int) (live.MatchInfo, error) {
	match, err := r.GetByID(ctx, matchID)
	if err != nil {
		return live.MatchInfo{}, err
	}
	return live.MatchInfo{
		ID:         match.ID,
		HomeTeamID: match.HomeTeamID,
		AwayTeamID: match.AwayTeamID,
		HomeScore:  match.HomeScore,
		AwayScore:  match.AwayScore,
		Completed:  match.Status == models.MatchStatusCompleted,
	}, nil
}
