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
	ErrPlayerNotFound       = errors.New("player not found")
	ErrJerseyNumberConflict = errors.New("jersey number already taken in this team")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	UpdatePhotoKey(ctx context.Context, id int, photoKey *string) error
	Delete(ctx context.Context, id int) error

	// Roster implements live.RosterSource for seeding live match state.
	Roster(ctx context.Context, teamID int) ([]live.RosterEntry, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (team_id, first_name, last_name, jersey_number, position, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.TeamID,
		player.FirstName,
		player.LastName,
		player.JerseyNumber,
		player.Position,
		player.BirthDate,
	).Scan(&player.ID, &player.CreatedAt)

	return r.handlePlayerError(err, "insert")
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `
		SELECT id, team_id, first_name, last_name, jersey_number, position, birth_date, photo_key, created_at
		FROM players
		WHERE id = $1`

	player := &models.Player{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&player.ID,
		&player.TeamID,
		&player.FirstName,
		&player.LastName,
		&player.JerseyNumber,
		&player.Position,
		&player.BirthDate,
		&player.PhotoKey,
		&player.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by id %d: %w", id, err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error) {
	query := `
		SELECT id, team_id, first_name, last_name, jersey_number, position, birth_date, photo_key, created_at
		FROM players
		WHERE team_id = $1
		ORDER BY jersey_number`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		player := &models.Player{}
		if err := rows.Scan(
			&player.ID,
			&player.TeamID,
			&player.FirstName,
			&player.LastName,
			&player.JerseyNumber,
			&player.Position,
			&player.BirthDate,
			&player.PhotoKey,
			&player.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (r *postgresPlayerRepository) Update(ctx context.Context, player *models.Player) error {
	query := `
		UPDATE players
		SET team_id = $1, first_name = $2, last_name = $3, jersey_number = $4, position = $5, birth_date = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		player.TeamID,
		player.FirstName,
		player.LastName,
		player.JerseyNumber,
		player.Position,
		player.BirthDate,
		player.ID,
	)
	if err != nil {
		return r.handlePlayerError(err, "update")
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) UpdatePhotoKey(ctx context.Context, id int, photoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE players SET photo_key = $1 WHERE id = $2`, photoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update player photo %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Roster(ctx context.Context, teamID int) ([]live.RosterEntry, error) {
	query := `
		SELECT id, jersey_number, position
		FROM players
		WHERE team_id = $1
		ORDER BY jersey_number`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var roster []live.RosterEntry
	for rows.Next() {
		var entry live.RosterEntry
		if err := rows.Scan(&entry.PlayerID, &entry.JerseyNumber, &entry.Position); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func (r *postgresPlayerRepository) handlePlayerError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return ErrJerseyNumberConflict
		case "foreign_key_violation":
			return ErrTeamNotFound
		}
	}
	return fmt.Errorf("failed to %s player: %w", op, err)
}
