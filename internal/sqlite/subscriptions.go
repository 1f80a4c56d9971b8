package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/blogfeed/internal/blog"
)

const subscriptionNamespace = "-sub"

const subscriptionColumns = `id, author_id, subscriber_id, created_at`

func (r Repo) InsertSubscription(ctx context.Context, sub blog.Subscription) (blog.Subscription, error) {
	const q = `INSERT INTO subscriptions (id, author_id, subscriber_id, created_at)
	VALUES (:id, :author_id, :subscriber_id, :created_at);`

	sub.ID = uuid.NewString() + subscriptionNamespace
	sub.CreatedAt = now()
	_, err := sqlx.NamedExecContext(ctx, r.ext, q, sub)
	if cErr := constraintErr(err, "subscription"); cErr != nil {
		return blog.Subscription{}, cErr
	}
	if err != nil {
		return blog.Subscription{}, fmt.Errorf("error inserting subscription: %w", err)
	}

	return r.subscription(ctx, sub.ID)
}

func (r Repo) subscription(ctx context.Context, id string) (blog.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?;`

	var sub blog.Subscription
	err := sqlx.GetContext(ctx, r.ext, &sub, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.Subscription{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Subscription{}, fmt.Errorf("error fetching subscription: %w", err)
	}

	return sub, nil
}

// DeleteSubscription removes subscriberID's subscription to authorID, and with it
// everything it delivered.
func (r Repo) DeleteSubscription(ctx context.Context, authorID, subscriberID string) error {
	const q = `DELETE FROM subscriptions WHERE author_id = ? AND subscriber_id = ?;`

	res, err := r.ext.ExecContext(ctx, q, authorID, subscriberID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}

	return requireAffected(res)
}

func (r Repo) AuthorSubscriptions(ctx context.Context, authorID string) ([]blog.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE author_id = ?;`

	subs := []blog.Subscription{}
	if err := sqlx.SelectContext(ctx, r.ext, &subs, q, authorID); err != nil {
		return nil, fmt.Errorf("error selecting author subscriptions: %w", err)
	}

	return subs, nil
}

func (r Repo) UserSubscriptions(ctx context.Context, subscriberID string) ([]blog.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE subscriber_id = ? ORDER BY created_at DESC, rowid DESC;`

	subs := []blog.Subscription{}
	if err := sqlx.SelectContext(ctx, r.ext, &subs, q, subscriberID); err != nil {
		return nil, fmt.Errorf("error selecting subscriptions: %w", err)
	}

	return subs, nil
}
