package models

import "time"

type Post struct {
	ID          int        `json:"id" db:"id"`
	AuthorID    int        `json:"author_id" db:"author_id"`
	Title       string     `json:"title" db:"title"`
	Slug        string     `json:"slug" db:"slug"`
	Body        string     `json:"body" db:"body"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	Author *User `json:"author,omitempty" db:"-"`

	CoverKey *string `json:"-" db:"cover_key"`
	CoverURL *string `json:"cover_url,omitempty" db:"-"`
}
