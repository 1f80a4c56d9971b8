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

const userNamespace = "-usr"

const userColumns = `id, github_id, username, email, created_at, updated_at`

// EnsureUser creates the user on first sign in. Later sign ins refresh the email.
func (r Repo) EnsureUser(ctx context.Context, usr blog.User) (blog.User, error) {
	const q = `INSERT INTO users (id, github_id, username, email, created_at, updated_at)
	VALUES (:id, :github_id, :username, :email, :created_at, :updated_at)
	ON CONFLICT (github_id) DO UPDATE SET
		email = COALESCE(NULLIF(excluded.email, ''), users.email),
		updated_at = excluded.updated_at;`

	usr.ID = uuid.NewString() + userNamespace
	usr.CreatedAt = now()
	usr.UpdatedAt = usr.CreatedAt
	if usr.Username == "" {
		usr.Username = usr.GithubID
	}
	if _, err := sqlx.NamedExecContext(ctx, r.ext, q, usr); err != nil {
		return blog.User{}, fmt.Errorf("error ensuring user: %w", err)
	}

	return r.UserByGithubID(ctx, usr.GithubID)
}

func (r Repo) User(ctx context.Context, id string) (blog.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?;`

	var usr blog.User
	err := sqlx.GetContext(ctx, r.ext, &usr, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.User{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.User{}, fmt.Errorf("error fetching user: %w", err)
	}

	return usr, nil
}

func (r Repo) UserByGithubID(ctx context.Context, githubID string) (blog.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE github_id = ?;`

	var usr blog.User
	err := sqlx.GetContext(ctx, r.ext, &usr, q, githubID)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.User{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.User{}, fmt.Errorf("error fetching user: %w", err)
	}

	return usr, nil
}

func (r Repo) Users(ctx context.Context, ids []string) ([]blog.User, error) {
	if len(ids) == 0 {
		return []blog.User{}, nil
	}

	query, args, err := sq.Select(userColumns).From("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var users []blog.User
	if err := sqlx.SelectContext(ctx, r.ext, &users, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching users: %w", err)
	}

	return users, nil
}

// AllUsers returns every user, most recently joined first.
func (r Repo) AllUsers(ctx context.Context) ([]blog.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, rowid DESC;`

	var users []blog.User
	if err := sqlx.SelectContext(ctx, r.ext, &users, q); err != nil {
		return nil, fmt.Errorf("error selecting all users: %w", err)
	}

	return users, nil
}
