package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/blogfeed/internal/blog"
)

const postNamespace = "-pst"

const postColumns = `id, author_id, title, body, created_at, updated_at`

func (r Repo) InsertPost(ctx context.Context, post blog.Post) (blog.Post, error) {
	const q = `INSERT INTO posts (id, author_id, title, body, created_at, updated_at)
	VALUES (:id, :author_id, :title, :body, :created_at, :updated_at);`

	post.ID = uuid.NewString() + postNamespace
	post.CreatedAt = now()
	post.UpdatedAt = post.CreatedAt
	_, err := sqlx.NamedExecContext(ctx, r.ext, q, post)
	if cErr := constraintErr(err, "post"); cErr != nil {
		return blog.Post{}, cErr
	}
	if err != nil {
		return blog.Post{}, fmt.Errorf("error inserting post: %w", err)
	}

	return r.Post(ctx, post.ID)
}

func (r Repo) Post(ctx context.Context, id string) (blog.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE id = ?;`

	var post blog.Post
	err := sqlx.GetContext(ctx, r.ext, &post, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, fmt.Errorf("error fetching post: %w", err)
	}

	return post, nil
}

// UpdatePost changes the title and body of a post. The lookup is scoped to the
// author, so someone else's post is indistinguishable from a missing one.
func (r Repo) UpdatePost(ctx context.Context, id, authorID string, in blog.PostInput) (blog.Post, error) {
	query, args, err := sq.Update("posts").
		Set("title", in.Title).
		Set("body", in.Body).
		Set("updated_at", now()).
		Where(sq.Eq{"id": id, "author_id": authorID}).
		ToSql()
	if err != nil {
		return blog.Post{}, fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.ext.ExecContext(ctx, query, args...)
	if cErr := constraintErr(err, "post"); cErr != nil {
		return blog.Post{}, cErr
	}
	if err != nil {
		return blog.Post{}, fmt.Errorf("error updating post: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return blog.Post{}, err
	}

	return r.Post(ctx, id)
}

// DeletePost removes a post owned by authorID. Its feed posts go with it.
func (r Repo) DeletePost(ctx context.Context, id, authorID string) error {
	const q = `DELETE FROM posts WHERE id = ? AND author_id = ?;`

	res, err := r.ext.ExecContext(ctx, q, id, authorID)
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}

	return requireAffected(res)
}

func (r Repo) AuthorPosts(ctx context.Context, authorID string) ([]blog.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE author_id = ? ORDER BY created_at DESC, rowid DESC;`

	posts := []blog.Post{}
	if err := sqlx.SelectContext(ctx, r.ext, &posts, q, authorID); err != nil {
		return nil, fmt.Errorf("error selecting author posts: %w", err)
	}

	return posts, nil
}

// Turns a write that touched nothing into a not found.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return blog.ErrNotFound
	}

	return nil
}
