// Package sqlite implements the blog store on top of sqlite.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/jdholdren/blogfeed/internal/blog"
)

// Ensure Repo implements the Store interface
var _ blog.Store = Repo{}

// Extended sqlite result codes for constraint failures.
const (
	codeConstraintForeignKey = 787
	codeConstraintUnique     = 2067
)

type Repo struct {
	db *sqlx.DB
	// ext is what queries run against: the pool, or the transaction from [Repo.Tx].
	ext sqlx.ExtContext
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db, ext: db}
}

// Open connects to the sqlite database at path with foreign keys enforced.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single writer keeps sqlite from handing out SQLITE_BUSY mid transaction.
	dbx.SetMaxOpenConns(1)

	return dbx, nil
}

func (r Repo) Tx(ctx context.Context, fn func(blog.Store) error) error {
	if _, ok := r.ext.(*sqlx.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(Repo{db: r.db, ext: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// constraintErr maps constraint violations onto the domain errors, or returns nil
// when err is something else.
func constraintErr(err error, what string) error {
	sqliteErr := &sqlite.Error{}
	if !errors.As(err, &sqliteErr) {
		return nil
	}

	switch sqliteErr.Code() {
	case codeConstraintUnique:
		return fmt.Errorf("%s already exists: %w", what, blog.ErrConflict)
	case codeConstraintForeignKey:
		return fmt.Errorf("%s refers to something missing: %w", what, blog.ErrNotFound)
	}

	return nil
}

// now is the timestamp written on new rows. Sub-second precision keeps
// ordering by creation time stable.
func now() time.Time {
	return time.Now().UTC()
}
