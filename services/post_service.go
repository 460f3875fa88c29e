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

type PostInput struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Publish bool   `json:"publish"`
}

type PostService interface {
	Create(ctx context.Context, authorID int, input PostInput) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, publishedOnly bool) ([]*models.Post, error)
	Update(ctx context.Context, id int, input PostInput) (*models.Post, error)
	Delete(ctx context.Context, id int) error
	UploadCover(ctx context.Context, id int, contentType string, file io.Reader) error
}

type postService struct {
	postRepo repositories.PostRepository
	uploader storage.FileUploader
}

func NewPostService(postRepo repositories.PostRepository, uploader storage.FileUploader) PostService {
	return &postService{
		postRepo: postRepo,
		uploader: uploader,
	}
}

func (s *postService) Create(ctx context.Context, authorID int, input PostInput) (*models.Post, error) {
	if input.Title == "" {
		return nil, ErrPostTitleRequired
	}

	post := &models.Post{
		AuthorID: authorID,
		Title:    input.Title,
		Slug:     Slugify(input.Title),
		Body:     input.Body,
	}
	if input.Publish {
		now := time.Now()
		post.PublishedAt = &now
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		if errors.Is(err, repositories.ErrPostSlugConflict) {
			return nil, ErrPostSlugConflict
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

func (s *postService) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post %q: %w", slug, err)
	}
	populatePostCoverURL(post, s.uploader)
	return post, nil
}

func (s *postService) List(ctx context.Context, publishedOnly bool) ([]*models.Post, error) {
	posts, err := s.postRepo.List(ctx, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	for _, post := range posts {
		populatePostCoverURL(post, s.uploader)
	}
	return posts, nil
}

func (s *postService) Update(ctx context.Context, id int, input PostInput) (*models.Post, error) {
	if input.Title == "" {
		return nil, ErrPostTitleRequired
	}

	post := &models.Post{
		ID:    id,
		Title: input.Title,
		Slug:  Slugify(input.Title),
		Body:  input.Body,
	}
	if input.Publish {
		now := time.Now()
		post.PublishedAt = &now
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPostNotFound):
			return nil, ErrPostNotFound
		case errors.Is(err, repositories.ErrPostSlugConflict):
			return nil, ErrPostSlugConflict
		}
		return nil, fmt.Errorf("failed to update post %d: %w", id, err)
	}
	return s.GetBySlug(ctx, post.Slug)
}

func (s *postService) Delete(ctx context.Context, id int) error {
	if err := s.postRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	return nil
}

func (s *postService) UploadCover(ctx context.Context, id int, contentType string, file io.Reader) error {
	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("posts/%d/cover%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return fmt.Errorf("failed to upload post cover: %w", err)
	}
	if err := s.postRepo.UpdateCoverKey(ctx, id, &key); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to store post cover key: %w", err)
	}
	return nil
}
