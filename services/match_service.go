package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avoronkov/fieldside/models"
	"github.com/avoronkov/fieldside/repositories"
)

type MatchInput struct {
	HomeTeamID int       `json:"home_team_id"`
	AwayTeamID int       `json:"away_team_id"`
	KickoffAt  time.Time `json:"kickoff_at"`
	Venue      *string   `json:"venue"`
}

// MatchReport is the historical read model for a completed match.
type MatchReport struct {
	Match *models.Match             `json:"match"`
	Stats []*models.MatchPlayerStat `json:"stats"`
}

type MatchService interface {
	Create(ctx context.Context, input MatchInput) (*models.Match, error)
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error)
	Update(ctx context.Context, id int, input MatchInput) (*models.Match, error)
	Cancel(ctx context.Context, id int) error
	Report(ctx context.Context, id int) (*MatchReport, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	statRepo  repositories.MatchStatRepository
	teamRepo  repositories.TeamRepository
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	statRepo repositories.MatchStatRepository,
	teamRepo repositories.TeamRepository,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		statRepo:  statRepo,
		teamRepo:  teamRepo,
	}
}

func (s *matchService) Create(ctx context.Context, input MatchInput) (*models.Match, error) {
	if input.HomeTeamID == input.AwayTeamID {
		return nil, ErrMatchTeamsIdentical
	}

	match := &models.Match{
		HomeTeamID: input.HomeTeamID,
		AwayTeamID: input.AwayTeamID,
		KickoffAt:  input.KickoffAt,
		Venue:      input.Venue,
		Status:     models.MatchStatusScheduled,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		if errors.Is(err, repositories.ErrMatchTeamInvalid) {
			return nil, ErrMatchTeamInvalid
		}
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return match, nil
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	s.populateTeams(ctx, match)
	return match, nil
}

func (s *matchService) List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	for _, match := range matches {
		s.populateTeams(ctx, match)
	}
	return matches, nil
}

func (s *matchService) Update(ctx context.Context, id int, input MatchInput) (*models.Match, error) {
	if input.HomeTeamID == input.AwayTeamID {
		return nil, ErrMatchTeamsIdentical
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.HomeTeamID = input.HomeTeamID
	existing.AwayTeamID = input.AwayTeamID
	existing.KickoffAt = input.KickoffAt
	existing.Venue = input.Venue

	if err := s.matchRepo.Update(ctx, existing); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchNotFound):
			return nil, ErrMatchNotFound
		case errors.Is(err, repositories.ErrMatchTeamInvalid):
			return nil, ErrMatchTeamInvalid
		}
		return nil, fmt.Errorf("failed to update match %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

func (s *matchService) Cancel(ctx context.Context, id int) error {
	if err := s.matchRepo.UpdateStatus(ctx, id, models.MatchStatusCanceled); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to cancel match %d: %w", id, err)
	}
	return nil
}

// Report returns the final score and per-player stats of a completed match.
func (s *matchService) Report(ctx context.Context, id int) (*MatchReport, error) {
	match, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusCompleted {
		return nil, ErrMatchNotCompleted
	}

	stats, err := s.statRepo.ListByMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for match %d: %w", id, err)
	}
	return &MatchReport{Match: match, Stats: stats}, nil
}

// populateTeams enriches a match with its team rows; lookup failures leave
// the embedded teams nil rather than failing the read.
func (s *matchService) populateTeams(ctx context.Context, match *models.Match) {
	if home, err := s.teamRepo.GetByID(ctx, match.HomeTeamID); err == nil {
		match.HomeTeam = home
	}
	if away, err := s.teamRepo.GetByID(ctx, match.AwayTeamID); err == nil {
		match.AwayTeam = away
	}
}
