package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avoronkov/fieldside/models"
	"github.com/lib/pq"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrPostSlugConflict = errors.New("post slug is already in use")
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, publishedOnly bool) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateCoverKey(ctx context.Context, id int, coverKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresPostRepository struct {
	db *sql.DB
}

func NewPostgresPostRepository(db *sql.DB) PostRepository {
	return &postgresPostRepository{db: db}
}

func (r *postgresPostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (author_id, title, slug, body, published_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		post.AuthorID,
		post.Title,
		post.Slug,
		post.Body,
		post.PublishedAt,
	).Scan(&post.ID, &post.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrPostSlugConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *postgresPostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	query := `
		SELECT p.id, p.author_id, p.title, p.slug, p.body, p.published_at, p.cover_key, p.created_at,
		       u.id, u.first_name, u.last_name, u.email, u.role, u.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.slug = $1`

	post := &models.Post{Author: &models.User{}}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Slug,
		&post.Body,
		&post.PublishedAt,
		&post.CoverKey,
		&post.CreatedAt,
		&post.Author.ID,
		&post.Author.FirstName,
		&post.Author.LastName,
		&post.Author.Email,
		&post.Author.Role,
		&post.Author.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to scan post by slug %q: %w", slug, err)
	}
	return post, nil
}

func (r *postgresPostRepository) List(ctx context.Context, publishedOnly bool) ([]*models.Post, error) {
	query := `
		SELECT id, author_id, title, slug, body, published_at, cover_key, created_at
		FROM posts`
	if publishedOnly {
		query += ` WHERE published_at IS NOT NULL AND published_at <= now()`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post := &models.Post{}
		if err := rows.Scan(
			&post.ID,
			&post.AuthorID,
			&post.Title,
			&post.Slug,
			&post.Body,
			&post.PublishedAt,
			&post.CoverKey,
			&post.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postgresPostRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $1, slug = $2, body = $3, published_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query, post.Title, post.Slug, post.Body, post.PublishedAt, post.ID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrPostSlugConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", post.ID, err)
	}
	return checkAffectedRows(result, ErrPostNotFound)
}

func (r *postgresPostRepository) UpdateCoverKey(ctx context.Context, id int, coverKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE posts SET cover_key = $1 WHERE id = $2`, coverKey, id)
	if err != nil {
		return fmt.Errorf("failed to update post cover %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPostNotFound)
}

func (r *postgresPostRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPostNotFound)
}
