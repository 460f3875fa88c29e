package services

import (
	"fmt"
	"strings"

	"github.com/avoronkov/fieldside/models"
	"github.com/avoronkov/fieldside/storage"
)

func populateTeamCrestURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.CrestKey != nil && *team.CrestKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.CrestKey)
		if url != "" {
			team.CrestURL = &url
		}
	}
}

func populatePlayerPhotoURL(player *models.Player, uploader storage.FileUploader) {
	if player != nil && player.PhotoKey != nil && *player.PhotoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*player.PhotoKey)
		if url != "" {
			player.PhotoURL = &url
		}
	}
}

func populatePostCoverURL(post *models.Post, uploader storage.FileUploader) {
	if post != nil && post.CoverKey != nil && *post.CoverKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*post.CoverKey)
		if url != "" {
			post.CoverURL = &url
		}
	}
}

func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImageType, contentType)
	}
}

// Slugify turns a post title into a URL slug.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
