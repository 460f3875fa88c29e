package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avoronkov/fieldside/models"
	"github.com/avoronkov/fieldside/repositories"
	"github.com/avoronkov/fieldside/storage"
)

type PlayerInput struct {
	TeamID       int                   `json:"team_id"`
	FirstName    string                `json:"first_name"`
	LastName     string                `json:"last_name"`
	JerseyNumber int                   `json:"jersey_number"`
	Position     models.PlayerPosition `json:"position"`
	BirthDate    *time.Time            `json:"birth_date"`
}

func (in PlayerInput) validate() error {
	if in.FirstName == "" || in.LastName == "" {
		return ErrValidationFailed
	}
	if !in.Position.Valid() {
		return ErrInvalidPosition
	}
	if in.JerseyNumber < 1 || in.JerseyNumber > 99 {
		return ErrInvalidJersey
	}
	return nil
}

type PlayerService interface {
	Create(ctx context.Context, input PlayerInput) (*models.Player, error)
	GetByID(ctx context.Context, id int) (*models.Player, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error)
	Update(ctx context.Context, id int, input PlayerInput) (*models.Player, error)
	Delete(ctx context.Context, id int) error
	UploadPhoto(ctx context.Context, id int, contentType string, file io.Reader) (*models.Player, error)
}

type playerService struct {
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
}

func NewPlayerService(playerRepo repositories.PlayerRepository, uploader storage.FileUploader) PlayerService {
	return &playerService{
		playerRepo: playerRepo,
		uploader:   uploader,
	}
}

func (s *playerService) Create(ctx context.Context, input PlayerInput) (*models.Player, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	player := &models.Player{
		TeamID:       input.TeamID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		JerseyNumber: input.JerseyNumber,
		Position:     input.Position,
		BirthDate:    input.BirthDate,
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, s.mapRepoError(err, "create")
	}
	return player, nil
}

func (s *playerService) GetByID(ctx context.Context, id int) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, "get")
	}
	populatePlayerPhotoURL(player, s.uploader)
	return player, nil
}

func (s *playerService) ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error) {
	players, err := s.playerRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for team %d: %w", teamID, err)
	}
	for _, player := range players {
		populatePlayerPhotoURL(player, s.uploader)
	}
	return players, nil
}

func (s *playerService) Update(ctx context.Context, id int, input PlayerInput) (*models.Player, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	player := &models.Player{
		ID:           id,
		TeamID:       input.TeamID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		JerseyNumber: input.JerseyNumber,
		Position:     input.Position,
		BirthDate:    input.BirthDate,
	}
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, s.mapRepoError(err, "update")
	}
	return s.GetByID(ctx, id)
}

func (s *playerService) Delete(ctx context.Context, id int) error {
	if err := s.playerRepo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, "delete")
	}
	return nil
}

func (s *playerService) UploadPhoto(ctx context.Context, id int, contentType string, file io.Reader) (*models.Player, error) {
	if _, err := s.playerRepo.GetByID(ctx, id); err != nil {
		return nil, s.mapRepoError(err, "get")
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("players/%d/photo%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload player photo: %w", err)
	}
	if err := s.playerRepo.UpdatePhotoKey(ctx, id, &key); err != nil {
		return nil, fmt.Errorf("failed to store player photo key: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *playerService) mapRepoError(err error, op string) error {
	switch {
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrJerseyNumberConflict):
		return ErrJerseyTaken
	}
	return fmt.Errorf("failed to %s player: %w", op, err)
}
