package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/avoronkov/fieldside/models"
	"github.com/avoronkov/fieldside/repositories"
	"github.com/avoronkov/fieldside/storage"
)

type CreateTeamInput struct {
	Name      string  `json:"name"`
	ShortName string  `json:"short_name"`
	AgeGroup  *string `json:"age_group"`
}

type TeamService interface {
	Create(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	Update(ctx context.Context, id int, input CreateTeamInput) (*models.Team, error)
	Delete(ctx context.Context, id int) error
	UploadCrest(ctx context.Context, id int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
}

func NewTeamService(teamRepo repositories.TeamRepository, playerRepo repositories.PlayerRepository, uploader storage.FileUploader) TeamService {
	return &teamService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		uploader:   uploader,
	}
}

func (s *teamService) Create(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		Name:      input.Name,
		ShortName: input.ShortName,
		AgeGroup:  input.AgeGroup,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}

	players, err := s.playerRepo.ListByTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team roster %d: %w", id, err)
	}
	team.Players = make([]models.Player, 0, len(players))
	for _, player := range players {
		populatePlayerPhotoURL(player, s.uploader)
		team.Players = append(team.Players, *player)
	}

	populateTeamCrestURL(team, s.uploader)
	return team, nil
}

func (s *teamService) List(ctx context.Context) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		populateTeamCrestURL(team, s.uploader)
	}
	return teams, nil
}

func (s *teamService) Update(ctx context.Context, id int, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		ID:        id,
		Name:      input.Name,
		ShortName: input.ShortName,
		AgeGroup:  input.AgeGroup,
	}
	if err := s.teamRepo.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to update team %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

func (s *teamService) Delete(ctx context.Context, id int) error {
	if err := s.teamRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}
	return nil
}

func (s *teamService) UploadCrest(ctx context.Context, id int, contentType string, file io.Reader) (*models.Team, error) {
	if _, err := s.teamRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("teams/%d/crest%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team crest: %w", err)
	}
	if err := s.teamRepo.UpdateCrestKey(ctx, id, &key); err != nil {
		return nil, fmt.Errorf("failed to store team crest key: %w", err)
	}
	return s.GetByID(ctx, id)
}
