package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool used by PgStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	pull_only  BOOLEAN NOT NULL DEFAULT FALSE
);
ALTER TABLE posts ADD COLUMN IF NOT EXISTS pull_only BOOLEAN NOT NULL DEFAULT FALSE;
CREATE INDEX IF NOT EXISTS posts_author_created_idx ON posts (author_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS posts_pull_only_author_idx ON posts (author_id) WHERE pull_only;
`

const (
	insertPost = `
	INSERT INTO posts (id, author_id, content, created_at, pull_only)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING;
	`
	markPullOnly = `
	UPDATE posts SET pull_only = TRUE
	WHERE id = $1;
	`
	selectPullOnlyAuthors = `
	SELECT DISTINCT author_id
	FROM posts
	WHERE pull_only AND author_id = ANY($1);
	`
	selectPost = `
	SELECT id, author_id, content, created_at
	FROM posts
	WHERE id = $1;
	`
	selectByAuthor = `
	SELECT id, author_id, content, created_at
	FROM posts
	WHERE author_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2;
	`
)

type PgStore struct {
	db Querier
}

func NewPgStore(db Querier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create posts schema: %w", err)
	}
	return nil
}

func (s *PgStore) Put(ctx context.Context, p Post) error {
	if _, err := s.db.Exec(ctx, insertPost, p.ID, p.AuthorID, p.Content, p.CreatedAt.UTC(), p.PullOnly); err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, postID string) (Post, error) {
	var p Post
	err := s.db.QueryRow(ctx, selectPost, postID).Scan(&p.ID, &p.AuthorID, &p.Content, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrPostNotFound
		}
		return Post{}, fmt.Errorf("get post %s: %w", postID, err)
	}
	return p, nil
}

func (s *PgStore) QueryByAuthor(ctx context.Context, authorID string, limit int) ([]Post, error) {
	rows, err := s.db.Query(ctx, selectByAuthor, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query posts of %s: %w", authorID, err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PgStore) MarkPullOnly(ctx context.Context, postID string) error {
	tag, err := s.db.Exec(ctx, markPullOnly, postID)
	if err != nil {
		return fmt.Errorf("mark post %s pull-only: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *PgStore) AuthorsWithPullOnly(ctx context.Context, authorIDs []string) ([]string, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, selectPullOnlyAuthors, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("query pull-only authors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		authors = append(authors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return authors, nil
}
