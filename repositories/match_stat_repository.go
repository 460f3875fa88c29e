package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avoronkov/fieldside/live"
	"github.com/avoronkov/fieldside/models"
)

// MatchStatRepository is the durable side of the live match core. It
// implements live.StatWriter; every write is an upsert so a retried flush
// is idempotent.
type MatchStatRepository interface {
	live.StatWriter

	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchPlayerStat, error)
}

type postgresMatchStatRepository struct {
	db *sql.DB
}

func NewPostgresMatchStatRepository(db *sql.DB) MatchStatRepository {
	return &postgresMatchStatRepository{db: db}
}

const upsertStatQuery = `
	INSERT INTO match_player_stats
		(match_id, player_id, is_playing, time_played, goals, assists,
		 passes_completed, duels_won, duels_lost, goals_allowed, goals_saved, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	ON CONFLICT (match_id, player_id) DO UPDATE SET
		is_playing = EXCLUDED.is_playing,
		time_played = EXCLUDED.time_played,
		goals = EXCLUDED.goals,
		assists = EXCLUDED.assists,
		passes_completed = EXCLUDED.passes_completed,
		duels_won = EXCLUDED.duels_won,
		duels_lost = EXCLUDED.duels_lost,
		goals_allowed = EXCLUDED.goals_allowed,
		goals_saved = EXCLUDED.goals_saved,
		updated_at = now()`

func (r *postgresMatchStatRepository) WritePlayerStat(ctx context.Context, matchID int, stat live.PlayerStat) error {
	return upsertPlayerStat(ctx, r.db, matchID, stat)
}

func upsertPlayerStat(ctx context.Context, exec SQLExecutor, matchID int, stat live.PlayerStat) error {
	_, err := exec.ExecContext(ctx, upsertStatQuery,
		matchID,
		stat.PlayerID,
		stat.IsPlaying,
		stat.TimePlayed,
		stat.Goals,
		stat.Assists,
		stat.PassesCompleted,
		stat.DuelsWon,
		stat.DuelsLost,
		stat.GoalsAllowed,
		stat.GoalsSaved,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stat for match %d player %d: %w", matchID, stat.PlayerID, err)
	}
	return nil
}

// MarkLive flips the fixture row to live so listings reflect a running
// match; the in-memory lifecycle remains the source of truth.
func (r *postgresMatchStatRepository) MarkLive(ctx context.Context, matchID int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1 WHERE id = $2`,
		models.MatchStatusLive, matchID)
	if err != nil {
		return fmt.Errorf("failed to mark match %d live: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchStatRepository) WriteScore(ctx context.Context, matchID, homeScore, awayScore int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET home_score = $1, away_score = $2 WHERE id = $3`,
		homeScore, awayScore, matchID)
	if err != nil {
		return fmt.Errorf("failed to write score for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// WriteFinalRecord archives the final score, clock and every stat line in
// one transaction, marking the match completed.
func (r *postgresMatchStatRepository) WriteFinalRecord(ctx context.Context, matchID, homeScore, awayScore, clockSeconds int, stats []live.PlayerStat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin final record tx for match %d: %w", matchID, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE matches
		SET home_score = $1, away_score = $2, duration_seconds = $3, status = $4
		WHERE id = $5`,
		homeScore, awayScore, clockSeconds, models.MatchStatusCompleted, matchID)
	if err != nil {
		return fmt.Errorf("failed to finalize match %d: %w", matchID, err)
	}
	if err := checkAffectedRows(result, ErrMatchNotFound); err != nil {
		return err
	}

	for _, stat := range stats {
		if err := upsertPlayerStat(ctx, tx, matchID, stat); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final record for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresMatchStatRepository) LoadPlayerStats(ctx context.Context, matchID int) ([]live.PlayerStat, error) {
	query := `
		SELECT player_id, is_playing, time_played, goals, assists,
		       passes_completed, duels_won, duels_lost, goals_allowed, goals_saved
		FROM match_player_stats
		WHERE match_id = $1`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for match %d: %w", matchID, err)
	}
	defer rows.Close()

	var stats []live.PlayerStat
	for rows.Next() {
		var stat live.PlayerStat
		if err := rows.Scan(
			&stat.PlayerID,
			&stat.IsPlaying,
			&stat.TimePlayed,
			&stat.Goals,
			&stat.Assists,
			&stat.PassesCompleted,
			&stat.DuelsWon,
			&stat.DuelsLost,
			&stat.GoalsAllowed,
			&stat.GoalsSaved,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ListByMatch returns the historical stat rows with player details, used by
// the completed-match read API.
func (r *postgresMatchStatRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchPlayerStat, error) {
	query := `
		SELECT s.match_id, s.player_id, s.is_playing, s.time_played, s.goals, s.assists,
		       s.passes_completed, s.duels_won, s.duels_lost, s.goals_allowed, s.goals_saved, s.updated_at,
		       p.id, p.team_id, p.first_name, p.last_name, p.jersey_number, p.position, p.created_at
		FROM match_player_stats s
		JOIN players p ON p.id = s.player_id
		WHERE s.match_id = $1
		ORDER BY p.team_id, p.jersey_number`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats for match %d: %w", matchID, err)
	}
	defer rows.Close()

	var stats []*models.MatchPlayerStat
	for rows.Next() {
		stat := &models.MatchPlayerStat{Player: &models.Player{}}
		if err := rows.Scan(
			&stat.MatchID,
			&stat.PlayerID,
			&stat.IsPlaying,
			&stat.TimePlayed,
			&stat.Goals,
			&stat.Assists,
			&stat.PassesCompleted,
			&stat.DuelsWon,
			&stat.DuelsLost,
			&stat.GoalsAllowed,
			&stat.GoalsSaved,
			&stat.UpdatedAt,
			&stat.Player.ID,
			&stat.Player.TeamID,
			&stat.Player.FirstName,
			&stat.Player.LastName,
			&stat.Player.JerseyNumber,
			&stat.Player.Position,
			&stat.Player.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
