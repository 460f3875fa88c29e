package services

import "errors"

// Sentinel errors shared across services and the HTTP error mapping.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrInvalidEmail           = errors.New("email address is not valid")

	ErrTeamNameRequired  = errors.New("team name is required")
	ErrTeamNotFound      = errors.New("team not found")
	ErrTeamNameConflict  = errors.New("team name is already in use")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInvalidPosition   = errors.New("invalid player position")
	ErrJerseyTaken       = errors.New("jersey number already taken in this team")
	ErrInvalidJersey     = errors.New("jersey number must be between 1 and 99")
	ErrPostNotFound      = errors.New("post not found")
	ErrPostTitleRequired = errors.New("post title is required")
	ErrPostSlugConflict  = errors.New("post slug is already in use")

	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchTeamsIdentical  = errors.New("a team cannot play against itself")
	ErrMatchTeamInvalid     = errors.New("match references an unknown team")
	ErrMatchNotCompleted    = errors.New("match has no final stats yet")
	ErrUnsupportedImageType = errors.New("unsupported image content type")
)
